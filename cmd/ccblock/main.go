// Package main implements ccblock, which prints the Claude Code usage block
// that is open right now, derived from conversation logs and a small cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	rootpkg "tools.zach/dev/ccblock"
	"tools.zach/dev/ccblock/internal/atomicfile"
	"tools.zach/dev/ccblock/internal/block"
	"tools.zach/dev/ccblock/internal/blockcache"
	"tools.zach/dev/ccblock/internal/config"
	"tools.zach/dev/ccblock/internal/logger"
	"tools.zach/dev/ccblock/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via -ldflags "-X main.version=...".
// Bare go build falls back to the VCS info embedded by the toolchain.
var version = "dev"

// resolveVersion returns [version] if it was set at build time, otherwise
// "dev+<hash>" (with ".dirty" for modified trees) from the embedded VCS info.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Setup
// ///////////////////////////////////////////////

// seedConfig writes the commented default config on first run. An existing
// file is left alone.
func seedConfig(dp paths.DataDir) error {
	if _, err := os.Stat(dp.Config()); !os.IsNotExist(err) {
		return nil
	}
	if err := atomicfile.Write(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// newLocator builds a [block.Locator] over claudeDir from the scan and block
// settings in cfg.
func newLocator(cfg *config.Config, claudeDir string, clock block.Clock, log *slog.Logger) *block.Locator {
	return block.New(claudeDir,
		block.WithDuration(cfg.Duration()),
		block.WithHorizons(cfg.Horizons()),
		block.WithPattern(cfg.Scan.Pattern),
		block.WithExclude(cfg.Scan.Exclude),
		block.WithWorkers(cfg.Scan.Workers),
		block.WithClock(clock),
		block.WithLogger(log),
	)
}

// applyOverrides folds command-line overrides into cfg and revalidates it.
func applyOverrides(cfg *config.Config, hours float64, claudeDir string) error {
	if claudeDir != "" {
		cfg.Scan.ClaudeDir = claudeDir
	}
	if hours != 0 {
		cfg.Block.DurationHours = hours
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate overrides: %w", err)
	}
	return nil
}

// openStore picks the cache backend: the configured file, or memory when
// caching is disabled in config or by flag.
func openStore(cfg *config.Config, noCache bool, log *slog.Logger) blockcache.Store {
	if noCache || !cfg.Cache.Enabled {
		return &blockcache.MemoryStore{}
	}
	return blockcache.NewFileStore(cfg.CacheFile(), log)
}

// ///////////////////////////////////////////////
// Output
// ///////////////////////////////////////////////

// report is the printed result. Times are nil when no block is open.
type report struct {
	Active       bool       `json:"active"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Remaining    string     `json:"remaining,omitempty"`

	elapsed   time.Duration
	remaining time.Duration
}

// newReport describes w at now for block length d.
func newReport(w *block.SessionWindow, now time.Time, d time.Duration) report {
	if w == nil {
		return report{}
	}
	start := w.StartTime.UTC()
	end := w.End(d).UTC()
	last := w.LastActivity.UTC()
	remaining := w.Remaining(now, d)
	return report{
		Active:       true,
		StartTime:    &start,
		EndTime:      &end,
		LastActivity: &last,
		Remaining:    remaining.Truncate(time.Second).String(),
		elapsed:      w.Elapsed(now),
		remaining:    remaining,
	}
}

// render writes r as JSON or as aligned text with times shown in loc.
func render(out io.Writer, r report, asJSON bool, loc *time.Location) error {
	if asJSON {
		return json.NewEncoder(out).Encode(r)
	}
	if !r.Active {
		_, err := fmt.Fprintln(out, "no active block")
		return err
	}
	_, err := fmt.Fprintf(out,
		"Block:          %s - %s\nLast activity:  %s\nElapsed:        %s\nRemaining:      %s\n",
		r.StartTime.In(loc).Format("15:04"),
		r.EndTime.In(loc).Format("15:04 MST"),
		r.LastActivity.In(loc).Format("15:04:05 MST"),
		formatDuration(r.elapsed),
		formatDuration(r.remaining),
	)
	return err
}

// formatDuration renders d as "2h05m", dropping seconds.
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", paths.DefaultDataDir(), "Data directory for config and logs")
	claudeDir := flag.String("claude-dir", "", "Claude Code directory (default: config, $CLAUDE_CONFIG_DIR, or ~/.claude)")
	hours := flag.Float64("hours", 0, "Block length in hours (default: config)")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	refresh := flag.Bool("refresh", false, "Ignore the cached block and rescan the logs")
	noCache := flag.Bool("no-cache", false, "Do not read or write the block cache file")
	verbose := flag.Bool("v", false, "Log at debug level and copy log output to stderr")
	writeConfig := flag.Bool("write-config", false, "Save the effective config (with -hours and -claude-dir applied) to the data directory and exit")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(paths.BinaryName, resolveVersion())
		return
	}

	dp := paths.DataDir{Root: *dataDir}
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}
	if err := seedConfig(dp); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(cfg, *hours, *claudeDir); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if *writeConfig {
		if err := cfg.Save(dp.Config()); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: save config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote", dp.Config())
		return
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if *verbose {
		level = min(level, slog.LevelDebug)
	}
	log, logCloser := logger.NewLogger(logger.Options{
		Path:      dp.Log(),
		Level:     level,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Stderr:    *verbose,
	})
	defer logCloser.Close()
	slog.SetDefault(log)

	root := cfg.ClaudeDir()
	slog.Debug("ccblock starting", "version", resolveVersion(), "claude_dir", root, "duration", cfg.Duration())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	clock := block.RealClock{}
	cache := blockcache.New(openStore(cfg, *noCache, log), newLocator(cfg, root, clock, log),
		blockcache.WithClock(clock),
		blockcache.WithLogger(log),
	)

	var w *block.SessionWindow
	if *refresh {
		w = cache.Refresh(ctx)
	} else {
		w = cache.Current(ctx)
	}

	if err := render(os.Stdout, newReport(w, clock.Now(), cfg.Duration()), *asJSON, time.Local); err != nil {
		logger.Fail(log, "failed to write output", "error", err)
		fmt.Fprintf(os.Stderr, "fatal: write output: %v\n", err)
		os.Exit(1)
	}
}
