package block

import "time"

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// SessionWindow is the block that is currently open.
type SessionWindow struct {
	// StartTime is the hour-floored start of the block, in UTC.
	StartTime time.Time `json:"startTime"`
	// LastActivity is the newest observed activity. When the window comes
	// from the cache it is the wall-clock time of the lookup instead.
	LastActivity time.Time `json:"lastActivity"`
}

// End returns when the block closes for a block length of d.
func (w SessionWindow) End(d time.Duration) time.Time {
	return w.StartTime.Add(d)
}

// Elapsed returns how long the block has been open at now.
func (w SessionWindow) Elapsed(now time.Time) time.Duration {
	return max(now.Sub(w.StartTime), 0)
}

// Remaining returns how long until the block closes, never negative.
func (w SessionWindow) Remaining(now time.Time, d time.Duration) time.Duration {
	return max(w.End(d).Sub(now), 0)
}

// Window is one candidate block built while replaying activity.
type Window struct {
	Start time.Time
	End   time.Time
	// Count is the number of timestamps that fell into this window.
	Count int
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// FloorHour truncates t to the top of its hour in UTC, so the result does
// not depend on the caller's local offset.
func FloorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// buildWindows replays ascending timestamps into consecutive, non-overlapping
// windows of length d. A timestamp past the current window's end opens a new
// window anchored at its floored hour.
func buildWindows(ascending []time.Time, d time.Duration) []Window {
	var out []Window
	for _, ts := range ascending {
		if n := len(out); n > 0 && !ts.After(out[n-1].End) {
			out[n-1].Count++
			continue
		}
		start := FloorHour(ts)
		out = append(out, Window{Start: start, End: start.Add(d), Count: 1})
	}
	return out
}

// activeWindow returns the window containing now that saw at least one
// timestamp.
func activeWindow(windows []Window, now time.Time) (Window, bool) {
	for _, w := range windows {
		if w.Count > 0 && w.Contains(now) {
			return w, true
		}
	}
	return Window{}, false
}
