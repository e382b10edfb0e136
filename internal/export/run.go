package export

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Origin says who asked for an export.
type Origin string

const (
	// OriginManual is an explicit request (API, MQTT command, CLI, startup).
	// Manual runs never notify.
	OriginManual Origin = "manual"

	// OriginAutomatic is a debounced registry change. Successful automatic
	// runs notify the user.
	OriginAutomatic Origin = "automatic"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginManual || o == OriginAutomatic
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run records one export attempt.
type Run struct {
	ID         string        `json:"id"`
	Origin     Origin        `json:"origin"`
	Status     string        `json:"status"`
	Entities   int           `json:"entities"`
	OutputFile string        `json:"output_file"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
}

// Succeeded reports whether the run wrote the output file.
func (r *Run) Succeeded() bool {
	return r.Status == StatusSuccess
}

// MarshalJSON adds duration_ms to the JSON form.
func (r Run) MarshalJSON() ([]byte, error) {
	type alias Run
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"duration_ms"`
	}{alias(r), r.Duration.Milliseconds()})
}

// newRunID returns a short unique run identifier.
func newRunID() string {
	return "exp-" + uuid.NewString()[:8]
}
