// Package blockcache remembers the start of the current usage block so most
// lookups can skip scanning conversation logs.
//
// The cache holds one start time. While now is at or before start plus the
// block length, [Cache.Current] answers from the record alone and reports
// now as the last activity. Otherwise it asks the [Locator] and stores
// whatever block it finds. Caching is best-effort: store failures are logged
// and never reach the caller.
package blockcache

import (
	"context"
	"log/slog"
	"time"

	"tools.zach/dev/ccblock/internal/block"
	"tools.zach/dev/ccblock/internal/paths"
)

// Locator finds the current block by scanning. [*block.Locator] implements it.
type Locator interface {
	Locate(ctx context.Context) (*block.SessionWindow, error)
	// Duration is the block length the locator scans with. The cache uses
	// the same length to decide when a stored block has closed.
	Duration() time.Duration
}

// ///////////////////////////////////////////////
// Cache
// ///////////////////////////////////////////////

// Cache answers current-block lookups from a [Store], falling back to a
// [Locator] when the stored block has closed.
type Cache struct {
	store   Store
	locator Locator
	clock   block.Clock
	log     *slog.Logger
}

// Option configures a [Cache].
type Option func(*Cache)

// WithClock sets the time source used for expiry.
func WithClock(c block.Clock) Option {
	return func(cache *Cache) { cache.clock = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(cache *Cache) { cache.log = log }
}

// New creates a Cache over store and locator.
func New(store Store, locator Locator, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		locator: locator,
		clock:   block.RealClock{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the open block, or nil when there is none. A stored block
// still open at now (judged with the locator's block length) is returned
// with LastActivity set to now. Otherwise the locator runs; a block it finds
// is stored. When it finds nothing the old record is left as is.
func (c *Cache) Current(ctx context.Context) *block.SessionWindow {
	now := c.clock.Now()
	d := c.locator.Duration()
	if start, ok := c.store.Read(); ok {
		if !now.After(start.Add(d)) {
			c.log.Debug("block cache hit", "start", start)
			return &block.SessionWindow{StartTime: start, LastActivity: now}
		}
		c.log.Debug("cached block expired", "start", start, "end", start.Add(d))
	}
	return c.Refresh(ctx)
}

// Refresh runs the locator regardless of the stored record and stores the
// block it finds.
func (c *Cache) Refresh(ctx context.Context) *block.SessionWindow {
	w, err := c.locator.Locate(ctx)
	if err != nil {
		c.log.Debug("block scan did not complete", "error", err)
		return nil
	}
	if w == nil {
		return nil
	}
	if err := c.store.Write(w.StartTime); err != nil {
		c.log.Warn("failed to write block cache", "error", err)
	}
	return w
}

// ///////////////////////////////////////////////
// Entry Point
// ///////////////////////////////////////////////

// Options configures [CurrentWindow]. Zero values select the defaults.
type Options struct {
	// ClaudeDir is the Claude Code directory holding projects/.
	// Defaults to [paths.DefaultClaudeDir].
	ClaudeDir string
	// CacheFile defaults to [paths.DefaultBlockCache].
	CacheFile string
	// Duration is the block length, [block.DefaultDuration] when zero.
	Duration time.Duration
	Clock    block.Clock
	Logger   *slog.Logger
}

// CurrentWindow composes a file-backed cache with a log scan and returns the
// open block, or nil. It never fails; every error degrades to nil.
func CurrentWindow(ctx context.Context, opts Options) *block.SessionWindow {
	if opts.ClaudeDir == "" {
		opts.ClaudeDir = paths.DefaultClaudeDir()
	}
	if opts.Duration <= 0 {
		opts.Duration = block.DefaultDuration
	}
	if opts.Clock == nil {
		opts.Clock = block.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	locator := block.New(opts.ClaudeDir,
		block.WithDuration(opts.Duration),
		block.WithClock(opts.Clock),
		block.WithLogger(opts.Logger),
	)
	cache := New(NewFileStore(opts.CacheFile, opts.Logger), locator,
		WithClock(opts.Clock),
		WithLogger(opts.Logger),
	)
	return cache.Current(ctx)
}
