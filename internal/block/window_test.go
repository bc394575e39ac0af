package block

import (
	"testing"
	"time"
)

func TestFloorHour(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"utc mid-hour", at(10, 45), at(10, 0)},
		{"utc on the hour", at(10, 0), at(10, 0)},
		{"half-hour offset", time.Date(2025, 1, 15, 15, 45, 0, 0, ist), at(10, 0)},
		{"negative offset crosses day", time.Date(2025, 1, 14, 21, 10, 0, 0, time.FixedZone("EST", -5*3600)), time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FloorHour(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("FloorHour(%s) = %s, want %s", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("FloorHour location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestBuildWindows(t *testing.T) {
	d := 5 * time.Hour
	got := buildWindows([]time.Time{
		at(0, 30), at(2, 0),
		at(5, 0), // on the end of [00,05], stays in it
		at(5, 1), at(9, 59),
		at(10, 0), // on the end of [05,10]
		at(11, 0),
	}, d)

	want := []Window{
		{Start: at(0, 0), End: at(5, 0), Count: 3},
		{Start: at(5, 0), End: at(10, 0), Count: 3},
		{Start: at(11, 0), End: at(16, 0), Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("buildWindows = %+v, want %+v", got, want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) || got[i].Count != want[i].Count {
			t.Errorf("window[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestActiveWindow(t *testing.T) {
	windows := []Window{
		{Start: at(0, 0), End: at(5, 0), Count: 2},
		{Start: at(10, 0), End: at(15, 0), Count: 0},
	}

	if _, ok := activeWindow(windows, at(12, 0)); ok {
		t.Error("activeWindow matched a window with no activity")
	}
	w, ok := activeWindow(windows, at(5, 0))
	if !ok || !w.Start.Equal(at(0, 0)) {
		t.Errorf("activeWindow at end boundary = %+v, %v; want [00,05]", w, ok)
	}
	if _, ok := activeWindow(nil, at(1, 0)); ok {
		t.Error("activeWindow(nil) matched")
	}
}

func TestSessionWindow_Durations(t *testing.T) {
	d := 5 * time.Hour
	w := SessionWindow{StartTime: at(10, 0), LastActivity: at(12, 0)}

	if got := w.End(d); !got.Equal(at(15, 0)) {
		t.Errorf("End = %s, want 15:00", got)
	}
	if got := w.Elapsed(at(12, 30)); got != 150*time.Minute {
		t.Errorf("Elapsed = %v, want 2h30m", got)
	}
	if got := w.Remaining(at(12, 30), d); got != 150*time.Minute {
		t.Errorf("Remaining = %v, want 2h30m", got)
	}
	if got := w.Remaining(at(16, 0), d); got != 0 {
		t.Errorf("Remaining after end = %v, want 0", got)
	}
	if got := w.Elapsed(at(9, 0)); got != 0 {
		t.Errorf("Elapsed before start = %v, want 0", got)
	}
}

// ///////////////////////////////////////////////
// Horizon Fold
// ///////////////////////////////////////////////

func TestContinuousStart(t *testing.T) {
	d := 5 * time.Hour
	tests := []struct {
		name         string
		ts           []time.Time
		wantStart    time.Time
		wantBoundary bool
	}{
		{"single", []time.Time{at(12, 0)}, at(12, 0), false},
		{"no gap", []time.Time{at(12, 0), at(9, 0), at(5, 0)}, at(5, 0), false},
		{"gap just under", []time.Time{at(12, 0), at(7, 1)}, at(7, 1), false},
		{"gap exactly d", []time.Time{at(12, 0), at(7, 0)}, at(12, 0), true},
		{"stops at first gap", []time.Time{at(12, 0), at(11, 0), at(3, 0), at(1, 0)}, at(11, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, boundary := continuousStart(tt.ts, d)
			if !start.Equal(tt.wantStart) || boundary != tt.wantBoundary {
				t.Errorf("continuousStart = (%s, %v), want (%s, %v)",
					start.Format(time.Kitchen), boundary, tt.wantStart.Format(time.Kitchen), tt.wantBoundary)
			}
		})
	}
}

func TestSearchStep(t *testing.T) {
	d := 5 * time.Hour

	t.Run("empty horizon keeps going", func(t *testing.T) {
		s, stop := search{}.step(nil, now, d)
		if stop || s.found {
			t.Errorf("step(nil) = %+v, %v; want unfound and continuing", s, stop)
		}
	})

	t.Run("stale stops", func(t *testing.T) {
		s, stop := search{}.step([]time.Time{now.Add(-5*time.Hour - time.Second)}, now, d)
		if !stop || !s.stale {
			t.Errorf("step = %+v, %v; want stale and stopped", s, stop)
		}
	})

	t.Run("exactly one block ago is not stale", func(t *testing.T) {
		s, _ := search{}.step([]time.Time{now.Add(-d)}, now, d)
		if s.stale {
			t.Error("step marked activity exactly one block ago as stale")
		}
	})

	t.Run("last activity fixed by first horizon", func(t *testing.T) {
		s, stop := search{}.step([]time.Time{at(12, 0), at(11, 0)}, now, d)
		if stop {
			t.Fatal("first horizon stopped without a boundary")
		}
		s, stop = s.step([]time.Time{at(12, 20), at(12, 0), at(11, 0), at(3, 0)}, now, d)
		if !stop || !s.boundary {
			t.Errorf("second step = %+v, %v; want boundary", s, stop)
		}
		if !s.last.Equal(at(12, 0)) {
			t.Errorf("last = %s, want 12:00 from the first horizon", s.last.Format(time.Kitchen))
		}
		got := s.sinceContinuousStart()
		want := []time.Time{at(11, 0), at(12, 0), at(12, 20)}
		if len(got) != len(want) {
			t.Fatalf("sinceContinuousStart = %v, want %v", got, want)
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Errorf("sinceContinuousStart[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}
