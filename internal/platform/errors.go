package platform

import "errors"

// Domain-specific errors for platform access.
var (
	// ErrSettingsUnavailable is returned when the exposure store cannot be
	// read. No export can be produced without it.
	ErrSettingsUnavailable = errors.New("platform: exposure settings unavailable")

	// ErrAssistantConfigMissing is returned when configuration.yaml has no
	// section for the assistant. Callers fall back to configured defaults.
	ErrAssistantConfigMissing = errors.New("platform: assistant config section missing")

	// ErrNotRegistryEvent is returned for event stream messages that are not
	// entity registry updates.
	ErrNotRegistryEvent = errors.New("platform: not an entity registry event")

	// ErrInvalidEvent is returned when an event stream payload cannot be decoded.
	ErrInvalidEvent = errors.New("platform: invalid event payload")
)
