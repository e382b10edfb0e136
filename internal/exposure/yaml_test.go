package exposure

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pvries86/hass-ga-autoexpose/internal/platform"
)

func TestExport_YAML(t *testing.T) {
	exp := &Export{Entries: []Entry{
		{EntityID: "switch.zeta", Entity: ExportedEntity{Name: "Küche Schalter", Aliases: []string{}, Expose: true}},
		{EntityID: "light.alpha", Entity: ExportedEntity{Name: "yes", Aliases: []string{"A", "B"}, Expose: true, Room: "Wohnzimmer"}},
	}}

	out, err := exp.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	text := string(out)

	if !strings.HasPrefix(text, "switch.zeta:\n  name: Küche Schalter\n  aliases: []\n  expose: true\n") {
		t.Errorf("unexpected first entry:\n%s", text)
	}
	if strings.Index(text, "switch.zeta") > strings.Index(text, "light.alpha") {
		t.Error("entries were re-sorted")
	}
	if strings.Count(text, "room:") != 1 {
		t.Errorf("want exactly one room key:\n%s", text)
	}

	// Decode back and check values survive, including the bool-like name.
	var decoded map[string]struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
		Expose  bool     `yaml:"expose"`
		Room    *string  `yaml:"room"`
	}
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	alpha := decoded["light.alpha"]
	if alpha.Name != "yes" || len(alpha.Aliases) != 2 || !alpha.Expose || alpha.Room == nil || *alpha.Room != "Wohnzimmer" {
		t.Errorf("light.alpha = %+v", alpha)
	}
	if decoded["switch.zeta"].Room != nil {
		t.Error("switch.zeta has a room key")
	}
}

func TestExport_YAMLEmpty(t *testing.T) {
	out, err := (&Export{}).YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	if string(out) != "{}\n" {
		t.Errorf("empty export = %q, want %q", out, "{}\n")
	}
}

func TestExport_Deterministic(t *testing.T) {
	snap := snapshot(platform.NewGlobalExposureConfig(true, []string{"light", "fan"}),
		expose("light.kitchen", platform.ExposeUnset),
		expose("switch.porch", platform.ExposeTrue),
		expose("fan.attic", platform.ExposeUnset),
	)

	first, err := Resolve(snap).YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Resolve(snap).YAML()
		if err != nil {
			t.Fatalf("YAML() error = %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, first, again)
		}
	}
}

func TestExport_MarshalYAMLViaLibrary(t *testing.T) {
	exp := &Export{Entries: []Entry{{EntityID: "light.a", Entity: ExportedEntity{Name: "A", Aliases: []string{}, Expose: true}}}}

	out, err := yaml.Marshal(exp)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), "light.a:") {
		t.Errorf("yaml.Marshal output = %s", out)
	}
}
