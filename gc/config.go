package gc

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/shlex"
	"github.com/inhies/go-bytesize"
	"github.com/mattn/go-colorable"
	"gopkg.in/yaml.v2"
)

// defaultHeapBytes is the initial arena size when nothing else is configured.
const defaultHeapBytes = 131072

// Config carries the tunables of a heap. The zero value is usable; New
// fills in defaults for unset fields.
type Config struct {
	// InitialHeapBytes is the size of the first arena. Later arenas grow
	// geometrically from it.
	InitialHeapBytes uint64

	// Debug enables per-collection diagnostics and poisoning of freed
	// memory.
	Debug bool

	// Verify checks every traced pointer against the arenas during
	// marking. Slow; meant for hunting corrupted edges.
	Verify bool

	// Diag receives diagnostic output. Defaults to stderr.
	Diag io.Writer
}

func DefaultConfig() Config {
	return Config{InitialHeapBytes: defaultHeapBytes}
}

func (c Config) withDefaults() Config {
	if c.InitialHeapBytes == 0 {
		c.InitialHeapBytes = defaultHeapBytes
	}
	if c.Diag == nil {
		c.Diag = colorable.NewColorableStderr()
	}
	return c
}

// ParseSize accepts either a plain integer byte count or a human-readable
// size such as "128KB".
func ParseSize(s string) (uint64, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	sz, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid heap size %q: %w", s, err)
	}
	return uint64(sz), nil
}

// ConfigFromEnv reads GC_INITIAL_HEAP_SIZE and GC_FLAGS on top of the
// defaults. GC_FLAGS is a shell-style word list; the recognized words are
// "debug" and "verify".
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if s := os.Getenv("GC_INITIAL_HEAP_SIZE"); s != "" {
		n, err := ParseSize(s)
		if err != nil {
			return cfg, err
		}
		cfg.InitialHeapBytes = n
	}

	if s := os.Getenv("GC_FLAGS"); s != "" {
		flags, err := shlex.Split(s)
		if err != nil {
			return cfg, fmt.Errorf("invalid GC_FLAGS: %w", err)
		}
		for _, f := range flags {
			switch f {
			case "debug":
				cfg.Debug = true
			case "verify":
				cfg.Verify = true
			default:
				return cfg, fmt.Errorf("unknown GC flag %q", f)
			}
		}
	}

	return cfg, nil
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	type fileConfig struct {
		InitialHeapSize string `yaml:"initial-heap-size"`
		Debug           bool   `yaml:"debug"`
		Verify          bool   `yaml:"verify"`
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if fc.InitialHeapSize != "" {
		n, err := ParseSize(fc.InitialHeapSize)
		if err != nil {
			return cfg, err
		}
		cfg.InitialHeapBytes = n
	}
	cfg.Debug = fc.Debug
	cfg.Verify = fc.Verify
	return cfg, nil
}
