package platform

import (
	"errors"
	"testing"
)

func TestParseEventStream(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantErr    error
		wantAction string
		wantEntity string
	}{
		{
			name:       "update",
			payload:    `{"event_type":"entity_registry_updated","event_data":{"action":"update","entity_id":"light.kitchen","changes":{"name":"old"}}}`,
			wantAction: ActionUpdate,
			wantEntity: "light.kitchen",
		},
		{
			name:       "create",
			payload:    `{"event_type":"entity_registry_updated","event_data":{"action":"create","entity_id":"switch.new"}}`,
			wantAction: ActionCreate,
			wantEntity: "switch.new",
		},
		{
			name:    "other event type",
			payload: `{"event_type":"state_changed","event_data":{"entity_id":"light.kitchen"}}`,
			wantErr: ErrNotRegistryEvent,
		},
		{
			name:    "missing action",
			payload: `{"event_type":"entity_registry_updated","event_data":{}}`,
			wantErr: ErrInvalidEvent,
		},
		{
			name:    "not json",
			payload: `online`,
			wantErr: ErrInvalidEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEventStream([]byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEventStream() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEventStream() error = %v", err)
			}
			if ev.Action != tt.wantAction || ev.EntityID != tt.wantEntity || ev.Source != SourceEventStream {
				t.Errorf("event = %+v", ev)
			}
		})
	}
}

func TestRegistryEvent_ArmsExport(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{ActionCreate, true},
		{ActionUpdate, true},
		{ActionRemove, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := (RegistryEvent{Action: tt.action}).ArmsExport(); got != tt.want {
			t.Errorf("ArmsExport(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}
