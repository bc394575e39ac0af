// Package config provides configuration loading and defaults for ccblock.
//
// Configuration is loaded from a TOML file in the user's data directory.
// The package covers block sizing, the log scan, the block cache, and
// logging, with defaults that match Claude Code's 5-hour usage blocks.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/ccblock/internal/atomicfile"
	"tools.zach/dev/ccblock/internal/paths"
)

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version.
	Version int `toml:"version"`
	// Block holds block sizing settings.
	Block BlockConfig `toml:"block"`
	// Scan holds conversation log scan settings.
	Scan ScanConfig `toml:"scan"`
	// Cache holds block cache settings.
	Cache CacheConfig `toml:"cache"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// BlockConfig holds block sizing settings.
type BlockConfig struct {
	// DurationHours is the length of one usage block.
	DurationHours float64 `toml:"duration_hours"`
	// LookbackMultipliers are the expanding search horizons, as multiples
	// of DurationHours, smallest first.
	LookbackMultipliers []float64 `toml:"lookback_multipliers"`
}

// ScanConfig holds conversation log scan settings.
type ScanConfig struct {
	// ClaudeDir is the Claude Code config directory. Empty means
	// $CLAUDE_CONFIG_DIR or ~/.claude.
	ClaudeDir string `toml:"claude_dir,omitempty"`
	// Pattern is a doublestar glob, relative to ClaudeDir, selecting log files.
	Pattern string `toml:"pattern"`
	// Exclude lists doublestar globs (relative to ClaudeDir) of files to skip.
	Exclude []string `toml:"exclude"`
	// Workers bounds how many log files are read concurrently.
	Workers int `toml:"workers"`
}

// CacheConfig holds block cache settings.
type CacheConfig struct {
	// Enabled turns the on-disk block cache on or off.
	Enabled bool `toml:"enabled"`
	// File overrides the cache file location. Empty means the per-user
	// cache directory.
	File string `toml:"file,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Block: BlockConfig{
			DurationHours:       5,
			LookbackMultipliers: []float64{2, 4, 9.6},
		},
		Scan: ScanConfig{
			Pattern: paths.ConversationGlob,
			Exclude: []string{},
			Workers: 8,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// Duration returns the block length as a time.Duration.
func (c *Config) Duration() time.Duration {
	return hoursToDuration(c.Block.DurationHours)
}

// Horizons returns the lookback horizons derived from the block duration.
func (c *Config) Horizons() []time.Duration {
	out := make([]time.Duration, len(c.Block.LookbackMultipliers))
	for i, m := range c.Block.LookbackMultipliers {
		out[i] = hoursToDuration(c.Block.DurationHours * m)
	}
	return out
}

// ClaudeDir returns the configured Claude directory or the platform default.
func (c *Config) ClaudeDir() string {
	if c.Scan.ClaudeDir != "" {
		return expandHome(c.Scan.ClaudeDir)
	}
	return paths.DefaultClaudeDir()
}

// CacheFile returns the configured cache file or the per-user default.
func (c *Config) CacheFile() string {
	if c.Cache.File != "" {
		return expandHome(c.Cache.File)
	}
	return paths.DefaultBlockCache()
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml.
// If the file doesn't exist, returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	if v := PeekVersion(data); v > CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", v, CurrentVersion)
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parse config: unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Version = CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// maxHours is the longest span, in hours, a time.Duration can hold.
const maxHours = float64(math.MaxInt64) / float64(time.Hour)

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if !(c.Block.DurationHours > 0) {
		return fmt.Errorf("block.duration_hours must be > 0, got %g", c.Block.DurationHours)
	}

	if len(c.Block.LookbackMultipliers) == 0 {
		return fmt.Errorf("block.lookback_multipliers must not be empty")
	}
	for i, m := range c.Block.LookbackMultipliers {
		if !(m > 0) {
			return fmt.Errorf("block.lookback_multipliers[%d] must be > 0, got %g", i, m)
		}
		if i > 0 && m <= c.Block.LookbackMultipliers[i-1] {
			return fmt.Errorf("block.lookback_multipliers must be strictly ascending, got %g after %g", m, c.Block.LookbackMultipliers[i-1])
		}
	}
	// The widest horizon is the largest span converted to a time.Duration.
	widest := c.Block.DurationHours * max(1, c.Block.LookbackMultipliers[len(c.Block.LookbackMultipliers)-1])
	if widest > maxHours {
		return fmt.Errorf("block.duration_hours %g times lookback multiplier overflows a duration (max %.0f hours)", c.Block.DurationHours, maxHours)
	}

	if !doublestar.ValidatePattern(c.Scan.Pattern) {
		return fmt.Errorf("invalid scan.pattern %q", c.Scan.Pattern)
	}
	for _, p := range c.Scan.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid scan.exclude pattern %q", p)
		}
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be >= 1, got %d", c.Scan.Workers)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}
