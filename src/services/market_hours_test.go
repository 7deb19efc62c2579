package services

import (
	"testing"
	"time"
)

// 2025-06-04 is a Wednesday.
func istTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2025, time.June, 4, hour, min, 0, 0, istZone)
}

func TestShouldFetchLive(t *testing.T) {
	clock := NewMarketClock(15, 30)

	tests := []struct {
		name   string
		now    time.Time
		forced bool
		want   bool
	}{
		{"weekday mid-session", istTime(t, 10, 0), false, true},
		{"at open", istTime(t, 9, 15), false, true},
		{"just before open", istTime(t, 9, 14), false, false},
		{"at close", istTime(t, 15, 30), false, true},
		{"after close", istTime(t, 16, 0), false, false},
		{"saturday", time.Date(2025, time.June, 7, 10, 0, 0, 0, istZone), false, false},
		{"sunday", time.Date(2025, time.June, 8, 10, 0, 0, 0, istZone), false, false},
		{"forced outside hours", istTime(t, 22, 0), true, true},
		{"forced on weekend", time.Date(2025, time.June, 7, 10, 0, 0, 0, istZone), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clock.ShouldFetchLive(tt.now, tt.forced); got != tt.want {
				t.Errorf("ShouldFetchLive(%v, forced=%v) = %v, want %v", tt.now, tt.forced, got, tt.want)
			}
		})
	}
}

// The window check must work in the caller's zone, not just IST inputs.
func TestShouldFetchLiveConvertsZones(t *testing.T) {
	clock := NewMarketClock(15, 30)
	// 04:45 UTC on a Wednesday is 10:15 IST.
	now := time.Date(2025, time.June, 4, 4, 45, 0, 0, time.UTC)
	if !clock.ShouldFetchLive(now, false) {
		t.Error("10:15 IST expressed in UTC should be inside market hours")
	}
	// 11:00 UTC is 16:30 IST, past close.
	now = time.Date(2025, time.June, 4, 11, 0, 0, 0, time.UTC)
	if clock.ShouldFetchLive(now, false) {
		t.Error("16:30 IST expressed in UTC should be outside market hours")
	}
}

func TestNextDailyRefresh(t *testing.T) {
	clock := NewMarketClock(15, 30)

	// Before today's refresh time: same day.
	next := clock.NextDailyRefresh(istTime(t, 10, 0))
	want := istTime(t, 15, 30)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// Exactly at the refresh time: strictly after, so tomorrow.
	next = clock.NextDailyRefresh(istTime(t, 15, 30))
	want = time.Date(2025, time.June, 5, 15, 30, 0, 0, istZone)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// After the refresh time: tomorrow.
	next = clock.NextDailyRefresh(istTime(t, 18, 0))
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}
