package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage document keys under the platform's .storage directory.
const (
	EntityRegistryFile  = "core.entity_registry"
	DeviceRegistryFile  = "core.device_registry"
	AreaRegistryFile    = "core.area_registry"
	ExposedEntitiesFile = "homeassistant.exposed_entities"
)

// StorageFiles lists the documents a Snapshot is built from.
var StorageFiles = []string{
	EntityRegistryFile,
	DeviceRegistryFile,
	AreaRegistryFile,
	ExposedEntitiesFile,
}

// Source produces registry snapshots.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StorageOptions configures a StorageSource.
type StorageOptions struct {
	// StorageDir is the platform's .storage directory.
	StorageDir string

	// Assistant is the settings key, e.g. "cloud.google_assistant".
	Assistant string

	// ConfigurationFile and PlatformSection locate the assistant's global
	// rules. With an empty ConfigurationFile only Fallback is used.
	ConfigurationFile string
	PlatformSection   string

	// Fallback applies when the configuration section is absent.
	Fallback GlobalExposureConfig

	// NeverExposed lists permanently excluded entity IDs.
	NeverExposed []string
}

// StorageSource builds snapshots from the platform's storage documents.
// Every call re-reads the files, so a snapshot always reflects disk.
type StorageSource struct {
	opts   StorageOptions
	logger Logger
}

// NewStorageSource creates a StorageSource.
func NewStorageSource(opts StorageOptions, logger Logger) *StorageSource {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StorageSource{opts: opts, logger: logger}
}

// Snapshot reads all registries and the exposure store.
//
// A missing or malformed exposure store yields ErrSettingsUnavailable. The
// entity, device and area registries are optional: a missing file is an
// empty registry, so cross-references fall back instead of failing.
func (s *StorageSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exposed, err := s.readExposedEntities()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSettingsUnavailable, err)
	}

	entities, order, err := s.readEntityRegistry()
	if err != nil {
		return nil, err
	}
	devices, err := s.readDeviceRegistry()
	if err != nil {
		return nil, err
	}
	areas, err := s.readAreaRegistry()
	if err != nil {
		return nil, err
	}

	// Store-only entities first, then registry entities in registry order.
	b := newSettingsBuilder()
	for _, setting := range exposed {
		b.put(setting)
	}
	for _, id := range order {
		if rec := entities[id]; rec.hasSetting {
			b.put(rec.setting)
		}
	}

	snap := &Snapshot{
		Settings:     b.settings,
		Entities:     make(map[string]RegistryEntry, len(entities)),
		Devices:      devices,
		Areas:        areas,
		Global:       s.globalConfig(),
		NeverExposed: make(map[string]struct{}, len(s.opts.NeverExposed)),
	}
	for id, e := range entities {
		snap.Entities[id] = e.entry
	}
	for _, id := range s.opts.NeverExposed {
		snap.NeverExposed[id] = struct{}{}
	}
	return snap, nil
}

// globalConfig reads the assistant section of configuration.yaml,
// falling back to the configured rules.
func (s *StorageSource) globalConfig() GlobalExposureConfig {
	if s.opts.ConfigurationFile == "" {
		return s.opts.Fallback
	}

	cfg, err := LoadAssistantConfig(s.opts.ConfigurationFile, s.opts.PlatformSection)
	switch {
	case err == nil:
		return cfg
	case errors.Is(err, ErrAssistantConfigMissing):
		s.logger.Debug("assistant section not in configuration, using configured defaults",
			"section", s.opts.PlatformSection)
	default:
		s.logger.Warn("reading assistant configuration failed, using configured defaults",
			"file", s.opts.ConfigurationFile,
			"error", err,
		)
	}
	return s.opts.Fallback
}

// storageDocument is the envelope of every .storage file.
type storageDocument struct {
	Version int             `json:"version"`
	Key     string          `json:"key"`
	Data    json.RawMessage `json:"data"`
}

// readDocument reads a storage document's data payload.
func (s *StorageSource) readDocument(name string) (json.RawMessage, error) {
	raw, err := os.ReadFile(filepath.Join(s.opts.StorageDir, name))
	if err != nil {
		return nil, err
	}
	var doc storageDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	if len(doc.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return doc.Data, nil
}

// readOptional is readDocument where a missing file is not an error.
func (s *StorageSource) readOptional(name string) (json.RawMessage, error) {
	data, err := s.readDocument(name)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("storage document missing, treating as empty", "file", name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// assistantOptions is one assistant's entry in an options mapping.
type assistantOptions struct {
	ShouldExpose *bool  `json:"should_expose"`
	Name         string `json:"name"`
}

// readExposedEntities returns the store's settings for the assistant, in
// store order.
func (s *StorageSource) readExposedEntities() ([]ExposureSetting, error) {
	data, err := s.readDocument(ExposedEntitiesFile)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ExposedEntities json.RawMessage `json:"exposed_entities"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ExposedEntitiesFile, err)
	}
	if len(payload.ExposedEntities) == 0 || string(payload.ExposedEntities) == "null" {
		return nil, fmt.Errorf("%s has no exposed_entities", ExposedEntitiesFile)
	}

	var settings []ExposureSetting
	err = decodeOrderedObject(payload.ExposedEntities, func(entityID string, value json.RawMessage) error {
		var entry struct {
			Assistants map[string]json.RawMessage `json:"assistants"`
		}
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("entity %s: %w", entityID, err)
		}
		setting, ok, err := settingFromOptions(entityID, entry.Assistants[s.opts.Assistant])
		if err != nil {
			return err
		}
		if ok {
			settings = append(settings, setting)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ExposedEntitiesFile, err)
	}
	return settings, nil
}

// settingFromOptions decodes an assistant options object. Absent and null
// options carry no setting; an empty object is a setting with
// should_expose unset.
func settingFromOptions(entityID string, raw json.RawMessage) (ExposureSetting, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return ExposureSetting{}, false, nil
	}

	var opts assistantOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return ExposureSetting{}, false, fmt.Errorf("entity %s options: %w", entityID, err)
	}
	return ExposureSetting{
		EntityID:     entityID,
		ShouldExpose: shouldExposeFrom(opts.ShouldExpose),
		Name:         opts.Name,
	}, true, nil
}

// registryRecord is an entity registry entry plus its assistant setting.
type registryRecord struct {
	entry      RegistryEntry
	setting    ExposureSetting
	hasSetting bool
}

// registryEntity mirrors the entity registry JSON.
type registryEntity struct {
	EntityID     string                     `json:"entity_id"`
	Name         string                     `json:"name"`
	OriginalName string                     `json:"original_name"`
	Aliases      []*string                  `json:"aliases"`
	AreaID       string                     `json:"area_id"`
	DeviceID     string                     `json:"device_id"`
	Options      map[string]json.RawMessage `json:"options"`
}

// readEntityRegistry returns entity records keyed by ID and the registry order.
func (s *StorageSource) readEntityRegistry() (map[string]registryRecord, []string, error) {
	data, err := s.readOptional(EntityRegistryFile)
	if err != nil || data == nil {
		return map[string]registryRecord{}, nil, err
	}

	var payload struct {
		Entities []registryEntity `json:"entities"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", EntityRegistryFile, err)
	}

	entries := make(map[string]registryRecord, len(payload.Entities))
	order := make([]string, 0, len(payload.Entities))
	for _, e := range payload.Entities {
		if e.EntityID == "" {
			continue
		}
		setting, ok, err := settingFromOptions(e.EntityID, e.Options[s.opts.Assistant])
		if err != nil {
			return nil, nil, fmt.Errorf("parsing %s: %w", EntityRegistryFile, err)
		}

		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			// A null alias stands for "the entity name" and has no text of its own.
			if a != nil {
				aliases = append(aliases, *a)
			}
		}

		if _, seen := entries[e.EntityID]; !seen {
			order = append(order, e.EntityID)
		}
		entries[e.EntityID] = registryRecord{
			entry: RegistryEntry{
				EntityID:     e.EntityID,
				Name:         e.Name,
				OriginalName: e.OriginalName,
				Aliases:      aliases,
				AreaID:       e.AreaID,
				DeviceID:     e.DeviceID,
			},
			setting:    setting,
			hasSetting: ok,
		}
	}
	return entries, order, nil
}

// readDeviceRegistry returns devices keyed by ID.
func (s *StorageSource) readDeviceRegistry() (map[string]DeviceEntry, error) {
	devices := make(map[string]DeviceEntry)

	data, err := s.readOptional(DeviceRegistryFile)
	if err != nil || data == nil {
		return devices, err
	}

	var payload struct {
		Devices []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			NameByUser string `json:"name_by_user"`
			AreaID     string `json:"area_id"`
		} `json:"devices"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", DeviceRegistryFile, err)
	}
	for _, d := range payload.Devices {
		devices[d.ID] = DeviceEntry{ID: d.ID, Name: d.Name, NameByUser: d.NameByUser, AreaID: d.AreaID}
	}
	return devices, nil
}

// readAreaRegistry returns areas keyed by ID.
func (s *StorageSource) readAreaRegistry() (map[string]AreaEntry, error) {
	areas := make(map[string]AreaEntry)

	data, err := s.readOptional(AreaRegistryFile)
	if err != nil || data == nil {
		return areas, err
	}

	var payload struct {
		Areas []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"areas"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", AreaRegistryFile, err)
	}
	for _, a := range payload.Areas {
		areas[a.ID] = AreaEntry{ID: a.ID, Name: a.Name}
	}
	return areas, nil
}

// decodeOrderedObject calls fn for each member of a JSON object in
// document order.
func decodeOrderedObject(raw json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
