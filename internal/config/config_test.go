package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, "[limits]\nmax_call_depth = 40\n\n[swf]\nsmall_tail_bytes = 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Limits.MaxCallDepth != 40 {
		t.Errorf("MaxCallDepth = %d, want 40", cfg.Limits.MaxCallDepth)
	}
	if cfg.Limits.MaxRepeat != 5 {
		t.Errorf("MaxRepeat = %d, want default 5", cfg.Limits.MaxRepeat)
	}
	if cfg.SWF.SmallTailBytes != 0 || cfg.SWF.MinRecordsBeforeEnd != 2 {
		t.Errorf("SWF = %+v", cfg.SWF)
	}
	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[limits]\nmax_depth = 3\n", "unknown keys"},
		{"non-positive", "[limits]\nmax_repeat = 0\n", "max_repeat"},
		{"syntax", "[limits\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			writeFile(t, path, tt.body)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, FileName), "[cache]\nenabled = true\n")

	path, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find = %q, %v, %v", path, ok, err)
	}
	cfg, err := Resolve("", nested)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Cache.Enabled {
		t.Error("config from parent directory not applied")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatal(err)
	}
}
