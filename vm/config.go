package vm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// RuntimeConfig holds the tuning constants from the specification's
// external interface table as instance-time parameters instead of
// compile-time constants, so a driver can load them from a file the
// way the teacher's manifest package loads project manifests.
type RuntimeConfig struct {
	StackMax     int     `toml:"stack_max"`
	HeapSize     int     `toml:"heap_size"`     // fixed variant, in cells
	HeapMinCells int     `toml:"heap_min"`       // reallocating variant, in cells
	HeapHeadroom float64 `toml:"heap_headroom"`  // reallocating variant
}

// DefaultConfig returns the constants named in the specification:
// STACK_MAX = 256, HEAP_SIZE = 1048576 bytes (here: cells, since this
// implementation is cell-indexed rather than byte-indexed), HEAP_MIN = 16
// bytes (here: one cell, the smallest capacity that can hold a single
// allocation), HEAP_HEADROOM = 1.5.
func DefaultConfig() RuntimeConfig {
	return RuntimeConfig{
		StackMax:     256,
		HeapSize:     1 << 20,
		HeapMinCells: 1,
		HeapHeadroom: 1.5,
	}
}

// LoadConfig parses a TOML file of the shape DefaultConfig produces,
// overriding only the fields present in the file and leaving the rest at
// their defaults. Mirrors manifest.Load's read-then-unmarshal shape.
func LoadConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("vm: cannot read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("vm: parse error in %s: %w", path, err)
	}
	return cfg, nil
}
