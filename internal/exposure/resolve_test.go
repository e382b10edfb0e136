package exposure

import (
	"testing"

	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

// snapshot builds a snapshot with the given settings and shared registries.
func snapshot(global platform.GlobalExposureConfig, settings ...platform.ExposureSetting) *platform.Snapshot {
	return &platform.Snapshot{
		Settings: settings,
		Entities: map[string]platform.RegistryEntry{
			"light.kitchen": {
				EntityID: "light.kitchen", OriginalName: "Ceiling",
				Aliases: []string{"Kitchen Light"}, AreaID: "kitchen", DeviceID: "bulb",
			},
			"switch.porch": {EntityID: "switch.porch", Name: "Porch", DeviceID: "relay"},
			"fan.attic":    {EntityID: "fan.attic", DeviceID: "fan"},
			"cover.garage": {EntityID: "cover.garage", DeviceID: "missing", AreaID: "gone"},
		},
		Devices: map[string]platform.DeviceEntry{
			"bulb":  {ID: "bulb", Name: "Hue", AreaID: "living"},
			"relay": {ID: "relay", Name: "Shelly", AreaID: "outside"},
			"fan":   {ID: "fan", Name: "Fan Controller", NameByUser: "Attic Fan"},
		},
		Areas: map[string]platform.AreaEntry{
			"kitchen": {ID: "kitchen", Name: "Kitchen"},
			"living":  {ID: "living", Name: "Living Room"},
			"outside": {ID: "outside", Name: "Outside"},
		},
		Global:       global,
		NeverExposed: map[string]struct{}{"group.all_locks": {}},
	}
}

func expose(id string, v platform.ShouldExpose) platform.ExposureSetting {
	return platform.ExposureSetting{EntityID: id, ShouldExpose: v}
}

func TestResolve_KitchenScenario(t *testing.T) {
	exp := Resolve(snapshot(platform.GlobalExposureConfig{}, expose("light.kitchen", platform.ExposeTrue)))

	if exp.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", exp.Len())
	}
	got := exp.Entries[0]
	if got.EntityID != "light.kitchen" {
		t.Errorf("EntityID = %q", got.EntityID)
	}
	if got.Entity.Name != "Ceiling" {
		t.Errorf("Name = %q, want Ceiling", got.Entity.Name)
	}
	if len(got.Entity.Aliases) != 1 || got.Entity.Aliases[0] != "Kitchen Light" {
		t.Errorf("Aliases = %v, want [Kitchen Light]", got.Entity.Aliases)
	}
	if !got.Entity.Expose {
		t.Error("Expose = false, want true")
	}
	if got.Entity.Room != "Kitchen" {
		t.Errorf("Room = %q, want Kitchen (entity area beats device area)", got.Entity.Room)
	}
}

func TestResolve_UnsetWithDefaultOffIsAbsent(t *testing.T) {
	exp := Resolve(snapshot(platform.NewGlobalExposureConfig(false, []string{"sensor"}),
		expose("sensor.internal", platform.ExposeUnset)))

	if exp.Len() != 0 {
		t.Errorf("Len() = %d, want 0", exp.Len())
	}
	if len(exp.Decisions) != 1 || exp.Decisions[0].Reason != ReasonDefaultOff {
		t.Errorf("Decisions = %+v", exp.Decisions)
	}
}

func TestResolve_ExcludedNeverAppear(t *testing.T) {
	exp := Resolve(snapshot(platform.NewGlobalExposureConfig(true, []string{"group", "light"}),
		expose("group.all_locks", platform.ExposeTrue),
		expose("light.kitchen", platform.ExposeFalse),
	))

	if exp.Len() != 0 {
		t.Errorf("Entries = %+v, want none", exp.Entries)
	}
}

func TestResolve_NameFallbacks(t *testing.T) {
	exp := Resolve(snapshot(platform.GlobalExposureConfig{},
		platform.ExposureSetting{EntityID: "switch.porch", ShouldExpose: platform.ExposeTrue, Name: "Override"},
		platform.ExposureSetting{EntityID: "light.kitchen", ShouldExpose: platform.ExposeTrue, Name: "GA Kitchen"},
		expose("fan.attic", platform.ExposeTrue),
		expose("cover.garage", platform.ExposeTrue),
		expose("script.unknown", platform.ExposeTrue),
	))

	want := map[string]string{
		"switch.porch":   "Porch",        // registry name beats override
		"light.kitchen":  "GA Kitchen",   // override beats original name
		"fan.attic":      "Attic Fan",    // device user name
		"cover.garage":   "cover.garage", // dangling device
		"script.unknown": "script.unknown",
	}
	for _, e := range exp.Entries {
		if e.Entity.Name != want[e.EntityID] {
			t.Errorf("%s name = %q, want %q", e.EntityID, e.Entity.Name, want[e.EntityID])
		}
		if e.Entity.Name == "" {
			t.Errorf("%s has empty name", e.EntityID)
		}
	}
}

func TestResolve_Rooms(t *testing.T) {
	exp := Resolve(snapshot(platform.GlobalExposureConfig{},
		expose("switch.porch", platform.ExposeTrue),
		expose("fan.attic", platform.ExposeTrue),
		expose("cover.garage", platform.ExposeTrue),
		expose("script.unknown", platform.ExposeTrue),
	))

	want := map[string]string{
		"switch.porch":   "Outside", // device area
		"fan.attic":      "",        // device without area
		"cover.garage":   "",        // unknown area id
		"script.unknown": "",        // not in registry
	}
	for _, e := range exp.Entries {
		if e.Entity.Room != want[e.EntityID] {
			t.Errorf("%s room = %q, want %q", e.EntityID, e.Entity.Room, want[e.EntityID])
		}
	}
}

func TestResolve_AliasesNeverNil(t *testing.T) {
	exp := Resolve(snapshot(platform.GlobalExposureConfig{}, expose("script.unknown", platform.ExposeTrue)))

	if exp.Entries[0].Entity.Aliases == nil {
		t.Error("Aliases = nil, want empty slice")
	}
}

func TestResolve_PreservesSettingsOrder(t *testing.T) {
	ids := []string{"switch.porch", "light.kitchen", "fan.attic", "cover.garage"}
	var settings []platform.ExposureSetting
	for _, id := range ids {
		settings = append(settings, expose(id, platform.ExposeTrue))
	}

	exp := Resolve(snapshot(platform.GlobalExposureConfig{}, settings...))
	for i, e := range exp.Entries {
		if e.EntityID != ids[i] {
			t.Errorf("Entries[%d] = %q, want %q", i, e.EntityID, ids[i])
		}
	}
}

func TestResolve_DefaultDomainInclusion(t *testing.T) {
	exp := Resolve(snapshot(platform.NewGlobalExposureConfig(true, []string{"light"}),
		expose("light.kitchen", platform.ExposeUnset),
		expose("fan.attic", platform.ExposeUnset),
	))

	if exp.Len() != 1 || exp.Entries[0].EntityID != "light.kitchen" {
		t.Errorf("Entries = %+v, want only light.kitchen", exp.Entries)
	}
}
