package platform

import "testing"

func TestDomain(t *testing.T) {
	tests := []struct {
		entityID string
		want     string
	}{
		{"light.kitchen", "light"},
		{"sensor.outdoor.temperature", "sensor"},
		{"nodot", "nodot"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.entityID); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.entityID, got, tt.want)
		}
	}
}

func TestShouldExposeFrom(t *testing.T) {
	yes, no := true, false
	if got := shouldExposeFrom(nil); got != ExposeUnset {
		t.Errorf("nil = %v, want unset", got)
	}
	if got := shouldExposeFrom(&yes); got != ExposeTrue {
		t.Errorf("true = %v, want true", got)
	}
	if got := shouldExposeFrom(&no); got != ExposeFalse {
		t.Errorf("false = %v, want false", got)
	}
}

func TestSettingsBuilder_KeepsFirstPosition(t *testing.T) {
	b := newSettingsBuilder()
	b.put(ExposureSetting{EntityID: "a", ShouldExpose: ExposeFalse})
	b.put(ExposureSetting{EntityID: "b"})
	b.put(ExposureSetting{EntityID: "a", ShouldExpose: ExposeTrue})

	if len(b.settings) != 2 {
		t.Fatalf("len = %d, want 2", len(b.settings))
	}
	if b.settings[0].EntityID != "a" || b.settings[0].ShouldExpose != ExposeTrue {
		t.Errorf("settings[0] = %+v, want a/true", b.settings[0])
	}
}

func TestGlobalExposureConfig_DomainExposed(t *testing.T) {
	g := NewGlobalExposureConfig(true, []string{"light"})
	if !g.DomainExposed("light") || g.DomainExposed("sensor") {
		t.Errorf("DomainExposed mismatch for %+v", g)
	}
	if (GlobalExposureConfig{}).DomainExposed("light") {
		t.Error("zero config exposes light")
	}
}
