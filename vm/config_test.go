package vm

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigMatchesSpecConstants(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StackMax != 256 {
		t.Errorf("StackMax = %d, want 256", cfg.StackMax)
	}
	if cfg.HeapSize != 1048576 {
		t.Errorf("HeapSize = %d, want 1048576", cfg.HeapSize)
	}
	if cfg.HeapHeadroom != 1.5 {
		t.Errorf("HeapHeadroom = %v, want 1.5", cfg.HeapHeadroom)
	}
}

func TestLoadConfigOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lisp2gc.toml")
	const body = "stack_max = 64\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.StackMax != 64 {
		t.Errorf("StackMax = %d, want 64", cfg.StackMax)
	}
	if cfg.HeapHeadroom != 1.5 {
		t.Errorf("HeapHeadroom = %v, want 1.5 (default preserved)", cfg.HeapHeadroom)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("LoadConfig() on a missing file should fail")
	}
}
