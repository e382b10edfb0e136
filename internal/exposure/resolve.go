package exposure

import "github.com/pvries86/hass-ga-autoexpose/internal/platform"

// ExportedEntity is one entity as written to the output file.
type ExportedEntity struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
	Expose  bool     `json:"expose"`

	// Room is empty when no area resolves; it is then omitted from output.
	Room string `json:"room,omitempty"`
}

// Entry pairs an entity ID with its exported form.
type Entry struct {
	EntityID string         `json:"entity_id"`
	Entity   ExportedEntity `json:"entity"`
}

// Export is the ordered result of a resolution.
type Export struct {
	// Entries are the included entities in assistant-settings order.
	Entries []Entry `json:"entities"`

	// Decisions holds the decision for every setting, included or not.
	Decisions []Decision `json:"decisions"`
}

// Len returns the number of exported entities.
func (e *Export) Len() int {
	return len(e.Entries)
}

// Resolve builds the export from a snapshot. It never fails: missing
// registry, device or area records fall back to defaults.
func Resolve(snap *platform.Snapshot) *Export {
	out := &Export{
		Entries:   make([]Entry, 0, len(snap.Settings)),
		Decisions: make([]Decision, 0, len(snap.Settings)),
	}

	for _, setting := range snap.Settings {
		d := Decide(setting, snap.Global, snap.IsNeverExposed(setting.EntityID))
		out.Decisions = append(out.Decisions, d)
		if !d.Include {
			continue
		}

		entry, inRegistry := snap.Entities[setting.EntityID]
		var device *platform.DeviceEntry
		if inRegistry && entry.DeviceID != "" {
			if dev, ok := snap.Devices[entry.DeviceID]; ok {
				device = &dev
			}
		}

		aliases := make([]string, 0, len(entry.Aliases))
		aliases = append(aliases, entry.Aliases...)

		out.Entries = append(out.Entries, Entry{
			EntityID: setting.EntityID,
			Entity: ExportedEntity{
				Name:    displayName(setting, entry, device),
				Aliases: aliases,
				Expose:  true,
				Room:    room(entry, device, snap.Areas),
			},
		})
	}
	return out
}

// displayName returns the first non-empty of: registry name, assistant
// override, original name, device user name, device name, entity ID.
func displayName(setting platform.ExposureSetting, entry platform.RegistryEntry, device *platform.DeviceEntry) string {
	candidates := []string{entry.Name, setting.Name, entry.OriginalName}
	if device != nil {
		candidates = append(candidates, device.NameByUser, device.Name)
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return setting.EntityID
}

// room resolves the entity's area, else its device's area, to an area name.
func room(entry platform.RegistryEntry, device *platform.DeviceEntry, areas map[string]platform.AreaEntry) string {
	areaID := entry.AreaID
	if areaID == "" && device != nil {
		areaID = device.AreaID
	}
	if areaID == "" {
		return ""
	}
	return areas[areaID].Name
}
