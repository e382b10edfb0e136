package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pvries86/hass-ga-autoexpose/internal/export"
	"github.com/pvries86/hass-ga-autoexpose/internal/exposure"
	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

// exportResponse is returned by POST /export.
type exportResponse struct {
	Run   *export.Run `json:"run"`
	Error string      `json:"error,omitempty"`
}

// exposedResponse is returned by GET /exposed.
type exposedResponse struct {
	OutputFile string              `json:"output_file"`
	Count      int                 `json:"count"`
	Entities   []exposure.Entry    `json:"entities"`
	Decisions  []exposure.Decision `json:"decisions,omitempty"`
}

// eventRequest is the body of POST /events.
type eventRequest struct {
	Action   string `json:"action"`
	EntityID string `json:"entity_id"`
}

// handleExport runs a manual export. Manual exports never notify.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, err := s.trigger.ExportNow(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, platform.ErrSettingsUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, exportResponse{Run: run, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{Run: run})
}

// handleListExports returns recent export runs, newest first.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	limit := export.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs := []export.Run{}
	if s.history != nil {
		listed, err := s.history.List(r.Context(), limit)
		if err != nil {
			s.logger.Error("listing export history failed", "error", err)
			writeInternalError(w, "failed to list exports")
			return
		}
		runs = listed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exports": runs,
		"count":   len(runs),
	})
}

// handleExposed previews the resolved export without writing it.
// ?format=yaml returns the exact file content; ?decisions=true adds the
// per-entity decisions to the JSON form.
func (s *Server) handleExposed(w http.ResponseWriter, r *http.Request) {
	result, err := s.exporter.Preview(r.Context())
	if err != nil {
		if errors.Is(err, platform.ErrSettingsUnavailable) {
			writeSettingsUnavailable(w)
			return
		}
		s.logger.Error("export preview failed", "error", err)
		writeInternalError(w, "failed to resolve exposed entities")
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := result.YAML()
		if err != nil {
			writeInternalError(w, "failed to encode YAML")
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck // Best-effort write to response
		return
	}

	resp := exposedResponse{
		OutputFile: s.exporter.OutputFile(),
		Count:      result.Len(),
		Entities:   result.Entries,
	}
	if r.URL.Query().Get("decisions") == "true" {
		resp.Decisions = result.Decisions
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePostEvent feeds a registry change into the debounced trigger.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch req.Action {
	case platform.ActionCreate, platform.ActionUpdate, platform.ActionRemove:
	default:
		writeError(w, http.StatusBadRequest, ErrCodeValidation,
			"action must be one of create, update, remove")
		return
	}

	ev := platform.RegistryEvent{Action: req.Action, EntityID: req.EntityID, Source: platform.SourceAPI}
	s.trigger.Notify(ev)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted":  true,
		"scheduled": ev.ArmsExport(),
	})
}
