package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawp123/covertower/pkg/errors"
	"github.com/rawp123/covertower/pkg/pipeline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
theme = "dark"
view = "carrierGroup"

[aliases]
"Carrier Co" = "Carrier"
"Pol Start" = "Start Date"

[palette]
light = ["#111111", "#222222"]
dark = ["#aaaaaa", "#bbbbbb"]

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/0"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c.Theme != "dark" || c.View != "carrierGroup" {
		t.Errorf("theme/view = %q/%q", c.Theme, c.View)
	}
	if c.Aliases["Carrier Co"] != "Carrier" {
		t.Errorf("aliases = %v", c.Aliases)
	}
	if len(c.Palette.Light) != 2 || c.Palette.Dark[1] != "#bbbbbb" {
		t.Errorf("palette = %+v", c.Palette)
	}
	if c.Cache.Backend != BackendRedis || c.Cache.RedisURL == "" {
		t.Errorf("cache = %+v", c.Cache)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad theme", `theme = "sepia"`},
		{"bad view", `view = "pie"`},
		{"bad backend", "[cache]\nbackend = \"memcached\""},
		{"mismatched palette", "[palette]\nlight = [\"#111111\"]\ndark = []"},
		{"bad toml", `theme = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if errors.GetCode(err) != errors.ErrCodeInvalidConfig {
				t.Errorf("error code = %v, want invalid config (err: %v)", errors.GetCode(err), err)
			}
		})
	}
}

func TestLoadDefaultMissingFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault error: %v", err)
	}
	if c.Theme != "" || c.Cache.Backend != "" {
		t.Errorf("missing file should yield zero config, got %+v", c)
	}
}

func TestFindPrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	xdg := filepath.Join(dir, "xdg")
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if err := os.MkdirAll(filepath.Join(xdg, "covertower"), 0755); err != nil {
		t.Fatal(err)
	}
	xdgPath := filepath.Join(xdg, "covertower", FileName)
	if err := os.WriteFile(xdgPath, []byte(`theme = "dark"`), 0644); err != nil {
		t.Fatal(err)
	}

	if got := Find(); got != xdgPath {
		t.Errorf("Find() = %q, want XDG path %q", got, xdgPath)
	}

	if err := os.WriteFile(FileName, []byte(`theme = "light"`), 0644); err != nil {
		t.Fatal(err)
	}
	if got := Find(); got != FileName {
		t.Errorf("Find() = %q, want local %q", got, FileName)
	}
}

func TestApplyFlagsWin(t *testing.T) {
	c := Config{
		Theme:   "dark",
		View:    "carrierGroup",
		Aliases: map[string]string{"Pol Start": "Start Date"},
		Palette: PaletteConfig{
			Light: []string{"#111111"},
			Dark:  []string{"#aaaaaa"},
		},
	}

	opts := pipeline.Options{Theme: "light", Aliases: map[string]string{"Pol Start": "Effective Date"}}
	c.Apply(&opts)

	if opts.Theme != "light" {
		t.Errorf("explicit theme overridden: %q", opts.Theme)
	}
	if opts.View != "carrierGroup" {
		t.Errorf("unset view should come from config: %q", opts.View)
	}
	if opts.Aliases["Pol Start"] != "Effective Date" {
		t.Errorf("explicit alias overridden: %v", opts.Aliases)
	}
	if len(opts.PaletteLight) != 1 || opts.PaletteDark[0] != "#aaaaaa" {
		t.Errorf("palette not applied: %v / %v", opts.PaletteLight, opts.PaletteDark)
	}
}
