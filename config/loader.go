package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config by layering defaults, an optional YAML file and
// environment variables, in that priority order (later layers win).
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader returns a Loader seeded with no file and the "SMC_" environment
// prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "SMC_"}
}

// WithConfigPath sets the YAML file to merge over the defaults.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix (default "SMC_").
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the final Config: defaults, then the YAML file if configured,
// then environment variable overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
	}

	l.applyEnv(cfg)

	if cfg.StorageDir == "" {
		return nil, fmt.Errorf("config: storage_dir is required")
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v, ok := l.lookup("STORAGE_DIR"); ok {
		cfg.StorageDir = v
	}
	if v, ok := l.lookup("DIALECT"); ok {
		cfg.Dialect = Dialect(v)
	}
	if v, ok := l.lookup("DSN"); ok {
		cfg.DSN = v
	}
	if v, ok := l.lookupBool("AUTO_SYNC"); ok {
		cfg.AutoSync = v
	}
	if v, ok := l.lookupInt("EMBEDDING_DIM"); ok {
		cfg.EmbeddingDim = v
	}
	if v, ok := l.lookupInt("MAX_ELEMENTS"); ok {
		cfg.MaxElements = v
	}
	if v, ok := l.lookupInt("EF_CONSTRUCTION"); ok {
		cfg.EfConstruction = v
	}
	if v, ok := l.lookupInt("M"); ok {
		cfg.M = v
	}
	if v, ok := l.lookupInt("EF_SEARCH"); ok {
		cfg.EfSearch = v
	}
	if v, ok := l.lookupInt("HISTORY_TAIL_DEFAULT"); ok {
		cfg.HistoryTailDefault = v
	}
}

func (l *Loader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(l.envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (l *Loader) lookupBool(name string) (bool, bool) {
	v, ok := l.lookup(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func (l *Loader) lookupInt(name string) (int, bool) {
	v, ok := l.lookup(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
