package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up from the working directory upward.
const FileName = "necro.toml"

// Config holds every tunable of a session.
type Config struct {
	Limits Limits `toml:"limits"`
	SWF    SWF    `toml:"swf"`
	Trace  Trace  `toml:"trace"`
	Cache  Cache  `toml:"cache"`

	// Path is the file the values were read from; empty for defaults.
	Path string `toml:"-"`
}

// Limits bound interpreter resources.
type Limits struct {
	MaxCallDepth    int `toml:"max_call_depth"`
	MaxRepeat       int `toml:"max_repeat"`
	MaxOperandStack int `toml:"max_operand_stack"`
	MaxDiagnostics  int `toml:"max_diagnostics"`
}

// SWF tunes the tagged-record stream heuristics.
type SWF struct {
	// An End record is honoured only after this many records...
	MinRecordsBeforeEnd int `toml:"min_records_before_end"`
	// ...or when at most this many bytes follow it.
	SmallTailBytes int `toml:"small_tail_bytes"`
}

// Trace mirrors the --trace* flags.
type Trace struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Output   string `toml:"output"`
	RingSize int    `toml:"ring_size"`
}

// Cache configures the on-disk document cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Limits: Limits{
			MaxCallDepth:    100,
			MaxRepeat:       5,
			MaxOperandStack: 4096,
			MaxDiagnostics:  100,
		},
		SWF: SWF{
			MinRecordsBeforeEnd: 2,
			SmallTailBytes:      16,
		},
		Trace: Trace{
			Level:    "off",
			Mode:     "stream",
			RingSize: 4096,
		},
	}
}

// Validate rejects limits that would disable the interpreter's bounds.
func (c Config) Validate() error {
	var errs []error
	if c.Limits.MaxCallDepth <= 0 {
		errs = append(errs, fmt.Errorf("[limits].max_call_depth must be positive, got %d", c.Limits.MaxCallDepth))
	}
	if c.Limits.MaxRepeat <= 0 {
		errs = append(errs, fmt.Errorf("[limits].max_repeat must be positive, got %d", c.Limits.MaxRepeat))
	}
	if c.Limits.MaxOperandStack <= 0 {
		errs = append(errs, fmt.Errorf("[limits].max_operand_stack must be positive, got %d", c.Limits.MaxOperandStack))
	}
	if c.Limits.MaxDiagnostics <= 0 {
		errs = append(errs, fmt.Errorf("[limits].max_diagnostics must be positive, got %d", c.Limits.MaxDiagnostics))
	}
	if c.SWF.MinRecordsBeforeEnd < 0 || c.SWF.SmallTailBytes < 0 {
		errs = append(errs, fmt.Errorf("[swf] heuristics must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads path on top of Default. Keys absent from the file keep their
// default; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Find walks from startDir to the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Resolve loads explicit when non-empty, otherwise the nearest FileName
// above startDir, otherwise Default.
func Resolve(explicit, startDir string) (Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}
