// Package block locates the Claude Code usage block that is open right now.
//
// A block is a fixed-length window (5 hours by default) anchored to the top
// of an hour in UTC. The [Locator] scans conversation logs under the Claude
// directory, using file modification times to skip logs that cannot hold
// recent activity, and widens its lookback horizon only until it finds a
// gap of at least one block length. Replaying the activity after that gap
// yields the block that contains the current time, if any.
package block

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"tools.zach/dev/ccblock/internal/logger"
	"tools.zach/dev/ccblock/internal/paths"
)

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

// DefaultDuration is the length of a Claude Code usage block.
const DefaultDuration = 5 * time.Hour

// defaultWorkers bounds concurrent file reads within one horizon.
const defaultWorkers = 8

// DefaultHorizons returns the expanding lookback horizons for block length
// d: 2d, 4d and 9.6d (10h, 20h and 48h for 5-hour blocks).
func DefaultHorizons(d time.Duration) []time.Duration {
	return []time.Duration{2 * d, 4 * d, d * 96 / 10}
}

// ///////////////////////////////////////////////
// Locator
// ///////////////////////////////////////////////

// Locator finds the current block from the logs under a root directory.
type Locator struct {
	root     string
	pattern  string
	exclude  []string
	duration time.Duration
	horizons []time.Duration
	workers  int
	clock    Clock
	log      *slog.Logger
}

// Option configures a [Locator].
type Option func(*Locator)

// WithDuration sets the block length. Non-positive values are ignored.
func WithDuration(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.duration = d
		}
	}
}

// WithHorizons sets the lookback horizons. Non-positive values are dropped
// and the rest scanned smallest first. When none remain they are derived
// from the block length with [DefaultHorizons].
func WithHorizons(h []time.Duration) Option {
	return func(l *Locator) { l.horizons = normalizeHorizons(h) }
}

func normalizeHorizons(h []time.Duration) []time.Duration {
	out := make([]time.Duration, 0, len(h))
	for _, d := range h {
		if d > 0 {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// WithPattern sets the doublestar glob, relative to root, selecting logs.
func WithPattern(p string) Option {
	return func(l *Locator) {
		if p != "" {
			l.pattern = p
		}
	}
}

// WithExclude sets doublestar globs, relative to root, of logs to skip.
func WithExclude(patterns []string) Option {
	return func(l *Locator) { l.exclude = slices.Clone(patterns) }
}

// WithWorkers bounds how many logs are read concurrently.
func WithWorkers(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(l *Locator) { l.clock = c }
}

// WithLogger sets the logger used for scan diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(l *Locator) { l.log = log }
}

// New creates a Locator for the Claude directory root.
func New(root string, opts ...Option) *Locator {
	l := &Locator{
		root:     root,
		pattern:  paths.ConversationGlob,
		duration: DefaultDuration,
		workers:  defaultWorkers,
		clock:    RealClock{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.horizons) == 0 {
		l.horizons = DefaultHorizons(l.duration)
	}
	return l
}

// Duration returns the block length the locator was built with.
func (l *Locator) Duration() time.Duration { return l.duration }

// Locate returns the block containing the current time, or nil when no
// block is open. Unreadable files and malformed records are skipped; the
// only error is ctx's, when the scan is cancelled before it completes.
func (l *Locator) Locate(ctx context.Context) (*SessionWindow, error) {
	now := l.clock.Now()
	files := listFiles(l.root, l.pattern, l.exclude, l.log)
	if len(files) == 0 {
		l.log.Debug("no conversation logs found", "root", l.root)
		return nil, nil
	}

	var s search
	for _, h := range l.horizons {
		ts, err := l.scanHorizon(ctx, files, now.Add(-h))
		if err != nil {
			return nil, err
		}
		var stop bool
		s, stop = s.step(ts, now, l.duration)
		l.log.Log(ctx, logger.LevelTrace, "horizon scanned",
			"horizon", h, "timestamps", len(ts), "boundary", s.boundary, "stale", s.stale)
		if stop {
			break
		}
	}

	if !s.found {
		return nil, nil
	}
	if s.stale {
		l.log.Debug("last activity older than block length", "last_activity", s.last)
		return nil, nil
	}

	w, ok := activeWindow(buildWindows(s.sinceContinuousStart(), l.duration), now)
	if !ok {
		return nil, nil
	}
	return &SessionWindow{StartTime: w.Start, LastActivity: s.last}, nil
}

// scanHorizon reads every log modified at or after cutoff and returns their
// activity timestamps, newest first. Logs are read concurrently; a log that
// cannot be read contributes nothing.
func (l *Locator) scanHorizon(ctx context.Context, files []logFile, cutoff time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recent := recentFiles(files, cutoff)
	perFile := make([][]time.Time, len(recent))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, f := range recent {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ts, err := ReadTimestamps(f.path)
			if err != nil {
				l.log.Debug("skipping unreadable log", "path", f.path, "error", err)
				return nil
			}
			perFile[i] = ts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []time.Time
	for _, ts := range perFile {
		all = append(all, ts...)
	}
	slices.SortFunc(all, func(a, b time.Time) int { return b.Compare(a) })
	return all, nil
}

// ///////////////////////////////////////////////
// Horizon Fold
// ///////////////////////////////////////////////

// search is the state carried from one horizon to the next.
type search struct {
	// found is set once any timestamp has been seen.
	found bool
	// last is the newest activity, fixed by the first horizon that saw any.
	last time.Time
	// stale means last is more than one block length before now.
	stale bool
	// timestamps is the newest-first activity of the latest horizon.
	timestamps []time.Time
	// continuousStart is the oldest timestamp reachable from last without
	// crossing a gap of a full block length.
	continuousStart time.Time
	// boundary is set when such a gap was found.
	boundary bool
}

// step folds one horizon's newest-first timestamps into s and reports
// whether the search can stop expanding.
func (s search) step(ts []time.Time, now time.Time, d time.Duration) (search, bool) {
	if len(ts) == 0 {
		return s, false
	}
	if !s.found {
		s.found = true
		s.last = ts[0]
	}
	if now.Sub(s.last) > d {
		s.stale = true
		return s, true
	}
	s.timestamps = ts
	s.continuousStart, s.boundary = continuousStart(ts, d)
	return s, s.boundary
}

// sinceContinuousStart returns the timestamps from continuousStart onward,
// oldest first.
func (s search) sinceContinuousStart() []time.Time {
	var out []time.Time
	for i := len(s.timestamps) - 1; i >= 0; i-- {
		if !s.timestamps[i].Before(s.continuousStart) {
			out = append(out, s.timestamps[i])
		}
	}
	return out
}

// continuousStart walks newest-first timestamps and stops at the first gap
// of at least d. It returns the oldest timestamp before that gap and whether
// a gap was found.
func continuousStart(ts []time.Time, d time.Duration) (time.Time, bool) {
	start := ts[0]
	for i := 1; i < len(ts); i++ {
		if ts[i-1].Sub(ts[i]) >= d {
			return start, true
		}
		start = ts[i]
	}
	return start, false
}
