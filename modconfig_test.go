package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseLuaLiteral(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{`"hello"`, "hello"},
		{"true", true},
		{"false", false},
		{"False", false},
		{"42", 42},
		{"-3", -3},
		{"1.5", 1.5},
		{"unquoted", "unquoted"},
	}
	for _, c := range cases {
		if got := parseLuaLiteral(c.raw); got != c.want {
			t.Fatalf("parseLuaLiteral(%q) = %v (%T), want %v (%T)", c.raw, got, got, c.want, c.want)
		}
	}
}

func TestFormatLuaLiteral(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{"hello", `"hello"`},
		{true, "true"},
		{false, "false"},
		{42, "42"},
		{1.5, "1.5"},
	}
	for _, c := range cases {
		if got := formatLuaLiteral(c.value); got != c.want {
			t.Fatalf("formatLuaLiteral(%v) = %q, want %q", c.value, got, c.want)
		}
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	for _, raw := range []string{`"text"`, "true", "false", "7", "2.25"} {
		if got := formatLuaLiteral(parseLuaLiteral(raw)); got != raw {
			t.Fatalf("round trip %q = %q", raw, got)
		}
	}
}

func TestModBlockBounds(t *testing.T) {
	content := `return {
  ["workshop-123"]={ configuration_options={ speed=2, nested={ a=1 } }, enabled=true },
  ["workshop-456"]={ configuration_options={  }, enabled=false }
}
`
	start, end, ok := modBlockBounds(content, "workshop-123")
	if !ok {
		t.Fatalf("block not found")
	}
	block := content[start:end]
	if !strings.HasPrefix(block, `["workshop-123"]`) {
		t.Fatalf("block start = %q", block)
	}
	if !strings.HasSuffix(block, "enabled=true }") {
		t.Fatalf("block end = %q", block)
	}
	if strings.Contains(block, "workshop-456") {
		t.Fatalf("block bleeds into the next entry: %q", block)
	}

	if _, _, ok := modBlockBounds(content, "workshop-999"); ok {
		t.Fatalf("found a block that does not exist")
	}
}

func writeModinfo(t *testing.T, g gameConfig, workshopID, content string) {
	t.Helper()
	dir := filepath.Join(g.installDir, "mods", workshopID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "modinfo.lua"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

const sampleModinfo = `name = "Sample Mod"
configuration_options = {
    {
        name = "speed",
        label = "Speed multiplier",
        hover = "How fast things go",
        options = {
            { description = "Slow", data = 1 },
            { description = "Fast", data = 2 },
        },
        default = 1,
    },
    {
        name = "greeting",
        label = "Greeting",
        options = {
            { description = "Hi", data = "hi" },
        },
        default = "hi",
    },
}
`

func TestModConfigOptions(t *testing.T) {
	g := testGame(t)
	writeModinfo(t, g, "workshop-123", sampleModinfo)

	opts := modConfigOptions(g, "workshop-123")
	if len(opts) != 2 {
		t.Fatalf("options = %+v", opts)
	}
	speed := opts[0]
	if speed.name != "speed" || speed.label != "Speed multiplier" || speed.hover != "How fast things go" {
		t.Fatalf("speed = %+v", speed)
	}
	if speed.def != 1 {
		t.Fatalf("speed default = %v (%T)", speed.def, speed.def)
	}
	if len(speed.choices) != 2 || speed.choices[1].description != "Fast" || speed.choices[1].data != "2" {
		t.Fatalf("speed choices = %+v", speed.choices)
	}
	if opts[1].def != "hi" {
		t.Fatalf("greeting default = %v", opts[1].def)
	}
}

func TestModConfigOptionsMissingModinfo(t *testing.T) {
	g := testGame(t)
	if opts := modConfigOptions(g, "workshop-404"); opts != nil {
		t.Fatalf("options = %+v", opts)
	}
}

func TestUpdateModConfigRoundTrip(t *testing.T) {
	g := testGame(t)
	writeOverrides(t, g, "Master", sampleOverrides)

	values := map[string]any{"speed": 2, "label": "big"}
	if !updateModConfig(g, "workshop-123", values, "Master") {
		t.Fatalf("updateModConfig failed")
	}

	got := currentModConfig(g, "workshop-123", "Master")
	if !reflect.DeepEqual(got, values) {
		t.Fatalf("currentModConfig = %+v, want %+v", got, values)
	}

	content := readFile(t, g.overridesPath("Master"))
	if err := validateLuaSource(content); err != nil {
		t.Fatalf("rewritten file does not compile: %v", err)
	}
	if !strings.Contains(content, "workshop-456") {
		t.Fatalf("other mod lost:\n%s", content)
	}
}

func TestUpdateModConfigAppendsNewMod(t *testing.T) {
	g := testGame(t)
	writeOverrides(t, g, "Master", emptyOverrides)

	if !updateModConfig(g, "workshop-789", map[string]any{"on": true}, "Master") {
		t.Fatalf("updateModConfig failed")
	}
	got := currentModConfig(g, "workshop-789", "Master")
	if want := map[string]any{"on": true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("currentModConfig = %+v", got)
	}
}

func TestResetModToDefault(t *testing.T) {
	g := testGame(t)
	writeModinfo(t, g, "workshop-123", sampleModinfo)
	writeOverrides(t, g, "Master", sampleOverrides)

	if !updateModConfig(g, "workshop-123", map[string]any{"speed": 2}, "Master") {
		t.Fatalf("updateModConfig failed")
	}
	if !resetModToDefault(g, "workshop-123", "Master") {
		t.Fatalf("resetModToDefault failed")
	}
	got := currentModConfig(g, "workshop-123", "Master")
	want := map[string]any{"speed": 1, "greeting": "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("config after reset = %+v, want %+v", got, want)
	}
}

func TestCurrentModConfigMissing(t *testing.T) {
	g := testGame(t)
	if got := currentModConfig(g, "workshop-123", "Master"); len(got) != 0 {
		t.Fatalf("config = %+v", got)
	}
}
