// Package config loads skyrank configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// SKYRANK_* environment variables (ENV > File > Defaults).
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/abelbrown/skyrank/internal/backend"
	"github.com/abelbrown/skyrank/internal/consensus"
	"github.com/abelbrown/skyrank/internal/fetch"
	"github.com/abelbrown/skyrank/internal/model"
	"github.com/abelbrown/skyrank/internal/ranking"
)

const (
	// EnvPrefix prefixes every environment override
	EnvPrefix = "SKYRANK_"

	// ConfigPathEnvVar names the config file when --config is not given
	ConfigPathEnvVar = "SKYRANK_CONFIG"
)

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"skyrank.yaml",
	filepath.Join(userConfigDir(), "skyrank", "config.yaml"),
}

// Config is the full application configuration.
type Config struct {
	Mix       MixConfig         `koanf:"mix"`
	Ranking   RankingConfig     `koanf:"ranking"`
	Consensus consensus.Options `koanf:"consensus"`
	Backend   BackendConfig     `koanf:"backend"`
	Fetch     fetch.Options     `koanf:"fetch"`
	Store     StoreConfig       `koanf:"store"`
	Log       LogConfig         `koanf:"log"`
}

// MixConfig describes the feed mix.
type MixConfig struct {
	// Name keys stored cursors, so separate mixes paginate independently
	Name    string        `koanf:"name"`
	Limit   int           `koanf:"limit"`
	Entries []EntryConfig `koanf:"entries"`
}

// EntryConfig is one source of the mix.
type EntryConfig struct {
	Kind    string  `koanf:"kind"` // "timeline" or "custom"
	Label   string  `koanf:"label"`
	URI     string  `koanf:"uri"`
	Percent float64 `koanf:"percent"`
}

type RankingConfig struct {
	Strategy       string  `koanf:"strategy"`
	WilsonZ        float64 `koanf:"wilson_z"`
	DegradedWilson bool    `koanf:"degraded_wilson"`
}

type BackendConfig struct {
	WASMPath string `koanf:"wasm_path"`
}

type StoreConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	// Dir enables a dated log file in addition to stderr
	Dir string `koanf:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mix: MixConfig{
			Name:  "default",
			Limit: 30,
			Entries: []EntryConfig{
				{Kind: string(model.FeedTimeline), Label: "Following", Percent: 100},
			},
		},
		Ranking: RankingConfig{
			Strategy: "newest",
			WilsonZ:  ranking.DefaultWilsonZ,
		},
		Consensus: consensus.DefaultOptions(),
		Fetch:     fetch.DefaultOptions(),
		Log:       LogConfig{Level: "warn"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// the first file found via SKYRANK_CONFIG and DefaultConfigPaths when path
// is empty) and the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps SKYRANK_SECTION_KEY to section.key. The section is
// the first word; the rest is the key, underscores kept:
//
//	SKYRANK_MIX_LIMIT               -> mix.limit
//	SKYRANK_CONSENSUS_MAX_CLUSTERS  -> consensus.max_clusters
//	SKYRANK_BACKEND_WASM_PATH       -> backend.wasm_path
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return dir
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Mix.Limit < 0 {
		errs = append(errs, fmt.Errorf("mix.limit must be >= 0, got %d", c.Mix.Limit))
	}
	for i, e := range c.Mix.Entries {
		switch model.FeedKind(e.Kind) {
		case model.FeedTimeline:
		case model.FeedCustom:
			if e.URI == "" {
				errs = append(errs, fmt.Errorf("mix.entries[%d]: custom feed needs a uri", i))
			}
		default:
			errs = append(errs, fmt.Errorf("mix.entries[%d]: unknown kind %q", i, e.Kind))
		}
		if e.Percent < 0 || math.IsNaN(e.Percent) || math.IsInf(e.Percent, 0) {
			errs = append(errs, fmt.Errorf("mix.entries[%d]: percent must be a non-negative number, got %v", i, e.Percent))
		}
	}

	if _, err := ranking.ByName(c.Ranking.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("ranking.strategy: %w", err))
	}
	if c.Ranking.WilsonZ <= 0 {
		errs = append(errs, fmt.Errorf("ranking.wilson_z must be > 0, got %v", c.Ranking.WilsonZ))
	}

	if c.Consensus.MaxClusters < 1 {
		errs = append(errs, fmt.Errorf("consensus.max_clusters must be >= 1, got %d", c.Consensus.MaxClusters))
	}
	if c.Consensus.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("consensus.max_iterations must be >= 1, got %d", c.Consensus.MaxIterations))
	}
	if c.Consensus.MinSilhouette < -1 || c.Consensus.MinSilhouette > 1 {
		errs = append(errs, fmt.Errorf("consensus.min_silhouette must be in [-1, 1], got %v", c.Consensus.MinSilhouette))
	}

	if c.Fetch.Timeout < 0 || c.Fetch.Timeout > 5*time.Minute {
		errs = append(errs, fmt.Errorf("fetch.timeout must be between 0 and 5m, got %v", c.Fetch.Timeout))
	}
	if c.Fetch.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("fetch.rate_per_second must be >= 0, got %v", c.Fetch.RatePerSecond))
	}

	return errors.Join(errs...)
}

// FeedEntries converts the configured sources to mix entries.
func (m MixConfig) FeedEntries() []model.FeedMixEntry {
	entries := make([]model.FeedMixEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		src := model.Timeline(e.Label)
		if model.FeedKind(e.Kind) == model.FeedCustom {
			src = model.Custom(e.Label, e.URI)
		}
		entries = append(entries, model.FeedMixEntry{Source: src, Percent: e.Percent})
	}
	return entries
}

// BackendConfig returns the backend selection settings.
func (c *Config) BackendConfig() backend.Config {
	return backend.Config{
		WASMPath:  c.Backend.WASMPath,
		Consensus: c.Consensus,
	}
}

// RankingContext returns a ranking context anchored at now.
func (c *Config) RankingContext(now time.Time) *ranking.Context {
	ctx := ranking.NewContext(now)
	ctx.WilsonZ = c.Ranking.WilsonZ
	return ctx
}

// Strategy returns the configured ranking strategy name, resolving the
// degraded Wilson flag.
func (c *Config) Strategy() string {
	name := c.Ranking.Strategy
	if c.Ranking.DegradedWilson {
		if r, err := ranking.ByName(name); err == nil {
			if _, ok := r.(*ranking.WilsonRanker); ok {
				return "wilson_degraded"
			}
		}
	}
	return name
}
