package platform

import (
	"encoding/json"
	"fmt"
)

// Registry event actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionRemove = "remove"
)

// Event sources.
const (
	SourceEventStream = "event_stream"
	SourceStorage     = "storage"
	SourceAPI         = "api"
)

// EventTypeRegistryUpdated is the platform event fired on entity registry changes.
const EventTypeRegistryUpdated = "entity_registry_updated"

// RegistryEvent is a change notification for the entity registry.
type RegistryEvent struct {
	Action   string `json:"action"`
	EntityID string `json:"entity_id,omitempty"`

	// Source names where the event came from.
	Source string `json:"source"`
}

// ArmsExport reports whether the event should (re)start the export timer.
// Only creations and updates do.
func (e RegistryEvent) ArmsExport() bool {
	return e.Action == ActionCreate || e.Action == ActionUpdate
}

// eventStreamMessage mirrors a message on the platform's MQTT event stream.
type eventStreamMessage struct {
	EventType string `json:"event_type"`
	EventData struct {
		Action   string `json:"action"`
		EntityID string `json:"entity_id"`
	} `json:"event_data"`
}

// ParseEventStream decodes an event stream payload.
//
// Returns ErrNotRegistryEvent for other event types and ErrInvalidEvent
// for payloads that are not event JSON.
func ParseEventStream(payload []byte) (RegistryEvent, error) {
	var msg eventStreamMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RegistryEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if msg.EventType != EventTypeRegistryUpdated {
		return RegistryEvent{}, fmt.Errorf("%w: %q", ErrNotRegistryEvent, msg.EventType)
	}
	if msg.EventData.Action == "" {
		return RegistryEvent{}, fmt.Errorf("%w: missing action", ErrInvalidEvent)
	}
	return RegistryEvent{
		Action:   msg.EventData.Action,
		EntityID: msg.EventData.EntityID,
		Source:   SourceEventStream,
	}, nil
}
