// Package config loads engine configuration from defaults, an optional YAML
// file and AURALIS_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// AURALIS_DATABASE_URL or AURALIS_DISCOVER_MIN_EVENTS.
const EnvPrefix = "AURALIS_"

// DefaultConfigPaths lists where a config file is searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/auralis/config.yaml",
}

// Config is the full engine configuration.
type Config struct {
	Addr              string        `koanf:"addr"`
	DatabaseURL       string        `koanf:"database_url"`
	GenerationTimeout time.Duration `koanf:"generation_timeout"`

	Retention    Retention          `koanf:"retention"`
	Weights      Weights            `koanf:"weights"`
	DailyMix     DailyMixConfig     `koanf:"daily_mix"`
	Discover     DiscoverConfig     `koanf:"discover"`
	OnRepeat     OnRepeatConfig     `koanf:"on_repeat"`
	Rewind       RewindConfig       `koanf:"rewind"`
	Featured     FeaturedConfig     `koanf:"featured"`
	PlaylistRecs PlaylistRecsConfig `koanf:"playlist_recs"`
	NewReleases  NewReleasesConfig  `koanf:"new_releases"`
}

// Retention controls signal-store pruning. Zero means keep forever.
type Retention struct {
	ListenEvents time.Duration `koanf:"listen_events"`
}

// Weights are the scoring weights for signal overlap.
type Weights struct {
	Genre         float64 `koanf:"genre"`
	Mood          float64 `koanf:"mood"`
	Artist        float64 `koanf:"artist"`
	PlaylistGenre float64 `koanf:"playlist_genre"`
	PlaylistMood  float64 `koanf:"playlist_mood"`
}

// DailyMixConfig parameterizes the shared daily mixes.
type DailyMixConfig struct {
	Window      int `koanf:"window"`        // personalization profile window
	MinTagSongs int `koanf:"min_tag_songs"` // eligibility floor per source tag
	Size        int `koanf:"size"`
	GenreTags   int `koanf:"genre_tags"` // source genre tags per day
	MoodTags    int `koanf:"mood_tags"`  // source mood tags per day
}

// DiscoverConfig parameterizes Discover Weekly.
type DiscoverConfig struct {
	Window    int `koanf:"window"`
	MinEvents int `koanf:"min_events"`
	Pool      int `koanf:"pool"`
	Size      int `koanf:"size"`
}

// OnRepeatConfig parameterizes On Repeat.
type OnRepeatConfig struct {
	Size int `koanf:"size"`
}

// RewindConfig parameterizes On Repeat Rewind.
type RewindConfig struct {
	MinForgotten  int `koanf:"min_forgotten"`
	MinOldListens int `koanf:"min_old_listens"`
	Size          int `koanf:"size"`
}

// FeaturedConfig parameterizes the featured/quick-pick list.
type FeaturedConfig struct {
	Window    int `koanf:"window"`
	MinEvents int `koanf:"min_events"`
	Limit     int `koanf:"limit"`
}

// PlaylistRecsConfig parameterizes playlist recommendations.
type PlaylistRecsConfig struct {
	MinSongs int     `koanf:"min_songs"`
	Size     int     `koanf:"size"`
	MinScore float64 `koanf:"min_score"`
}

// NewReleasesConfig parameterizes new-release lookback.
type NewReleasesConfig struct {
	Days int `koanf:"days"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Addr:              "127.0.0.1:8080",
		DatabaseURL:       "",
		GenerationTimeout: 10 * time.Second,
		Retention:         Retention{ListenEvents: 0},
		Weights: Weights{
			Genre:         1,
			Mood:          1,
			Artist:        2,
			PlaylistGenre: 3,
			PlaylistMood:  2,
		},
		DailyMix: DailyMixConfig{
			Window:      150,
			MinTagSongs: 5,
			Size:        30,
			GenreTags:   6,
			MoodTags:    4,
		},
		Discover: DiscoverConfig{
			Window:    200,
			MinEvents: 20,
			Pool:      200,
			Size:      30,
		},
		OnRepeat: OnRepeatConfig{Size: 30},
		Rewind: RewindConfig{
			MinForgotten:  10,
			MinOldListens: 3,
			Size:          30,
		},
		Featured: FeaturedConfig{
			Window:    50,
			MinEvents: 10,
			Limit:     8,
		},
		PlaylistRecs: PlaylistRecsConfig{
			MinSongs: 10,
			Size:     10,
			MinScore: 3,
		},
		NewReleases: NewReleasesConfig{Days: 14},
	}
}

// Load builds the configuration from defaults, an optional config file and
// environment variables, highest priority last.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// AURALIS_DAILY_MIX_SIZE -> daily_mix.size
	envProvider := env.Provider(EnvPrefix, ".", func(key string) string {
		return envToPath(strings.TrimPrefix(key, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// sectionPrefixes maps the first env var tokens to config sections so the
// remaining tokens can be joined back with underscores.
var sectionPrefixes = []string{
	"RETENTION",
	"WEIGHTS",
	"DAILY_MIX",
	"ON_REPEAT",
	"PLAYLIST_RECS",
	"NEW_RELEASES",
	"DISCOVER",
	"REWIND",
	"FEATURED",
}

func envToPath(key string) string {
	for _, prefix := range sectionPrefixes {
		if rest, ok := strings.CutPrefix(key, prefix+"_"); ok {
			return strings.ToLower(prefix) + "." + strings.ToLower(rest)
		}
	}
	return strings.ToLower(key)
}

func findConfigFile() string {
	if path := os.Getenv("AURALIS_CONFIG"); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("generation_timeout must be positive")
	}
	if c.Discover.Size > c.Discover.Pool {
		return fmt.Errorf("discover.size (%d) cannot exceed discover.pool (%d)", c.Discover.Size, c.Discover.Pool)
	}
	if c.Featured.Limit <= 0 {
		return fmt.Errorf("featured.limit must be positive")
	}
	if c.Retention.ListenEvents < 0 {
		return fmt.Errorf("retention.listen_events cannot be negative")
	}
	return nil
}
