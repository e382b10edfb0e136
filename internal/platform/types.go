package platform

import "strings"

// ShouldExpose is the tri-state per-assistant exposure setting.
type ShouldExpose int

const (
	// ExposeUnset means the user made no choice; global rules decide.
	ExposeUnset ShouldExpose = iota
	// ExposeTrue forces the entity into the export.
	ExposeTrue
	// ExposeFalse keeps the entity out of the export.
	ExposeFalse
)

// String returns "unset", "true" or "false".
func (s ShouldExpose) String() string {
	switch s {
	case ExposeTrue:
		return "true"
	case ExposeFalse:
		return "false"
	default:
		return "unset"
	}
}

// shouldExposeFrom maps an optional JSON boolean to the tri-state.
func shouldExposeFrom(v *bool) ShouldExpose {
	switch {
	case v == nil:
		return ExposeUnset
	case *v:
		return ExposeTrue
	default:
		return ExposeFalse
	}
}

// ExposureSetting is one entity's settings for one assistant.
type ExposureSetting struct {
	EntityID     string
	ShouldExpose ShouldExpose

	// Name is the assistant-specific name override, empty when unset.
	Name string
}

// AssistantSettings is the ordered list of exposure settings for one
// assistant. Order is significant: it is the order of the export.
type AssistantSettings []ExposureSetting

// settingsBuilder accumulates settings with mapping semantics: a repeated
// entity replaces the earlier value but keeps its position.
type settingsBuilder struct {
	settings AssistantSettings
	index    map[string]int
}

func newSettingsBuilder() *settingsBuilder {
	return &settingsBuilder{index: make(map[string]int)}
}

func (b *settingsBuilder) put(s ExposureSetting) {
	if i, ok := b.index[s.EntityID]; ok {
		b.settings[i] = s
		return
	}
	b.index[s.EntityID] = len(b.settings)
	b.settings = append(b.settings, s)
}

// GlobalExposureConfig holds the assistant-wide fallback rules for
// entities without an explicit setting.
type GlobalExposureConfig struct {
	ExposeByDefault bool
	ExposedDomains  map[string]struct{}
}

// NewGlobalExposureConfig builds a config from a domain list.
func NewGlobalExposureConfig(exposeByDefault bool, domains []string) GlobalExposureConfig {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return GlobalExposureConfig{ExposeByDefault: exposeByDefault, ExposedDomains: set}
}

// DomainExposed reports whether domain is in ExposedDomains.
func (g GlobalExposureConfig) DomainExposed(domain string) bool {
	_, ok := g.ExposedDomains[domain]
	return ok
}

// RegistryEntry is an entity registry record. Empty strings mean absent.
type RegistryEntry struct {
	EntityID     string
	Name         string
	OriginalName string
	Aliases      []string
	AreaID       string
	DeviceID     string
}

// DeviceEntry is a device registry record. Empty strings mean absent.
type DeviceEntry struct {
	ID         string
	Name       string
	NameByUser string
	AreaID     string
}

// AreaEntry is an area registry record.
type AreaEntry struct {
	ID   string
	Name string
}

// Snapshot is a read-only view of everything the resolver needs.
type Snapshot struct {
	Settings     AssistantSettings
	Entities     map[string]RegistryEntry
	Devices      map[string]DeviceEntry
	Areas        map[string]AreaEntry
	Global       GlobalExposureConfig
	NeverExposed map[string]struct{}
}

// IsNeverExposed reports whether entityID is permanently excluded.
func (s *Snapshot) IsNeverExposed(entityID string) bool {
	_, ok := s.NeverExposed[entityID]
	return ok
}

// Domain returns the part of an entity ID before the first ".".
// An ID without a dot is its own domain.
func Domain(entityID string) string {
	domain, _, _ := strings.Cut(entityID, ".")
	return domain
}
