// backend/src/services/market_hours.go
package services

import "time"

// Indian exchanges trade 09:15-15:30 IST, Monday to Friday. A fixed offset
// zone avoids depending on the host's tzdata.
var istZone = time.FixedZone("IST", 5*3600+30*60)

const (
	marketOpenHour    = 9
	marketOpenMinute  = 15
	marketCloseHour   = 15
	marketCloseMinute = 30
)

// MarketClock answers whether live fetching should happen at a given instant
// and when the next daily refresh is due. It holds no state; scheduling is the
// RefreshScheduler's job.
type MarketClock struct {
	refreshHour   int
	refreshMinute int
}

func NewMarketClock(refreshHour, refreshMinute int) *MarketClock {
	return &MarketClock{refreshHour: refreshHour, refreshMinute: refreshMinute}
}

// ShouldFetchLive reports whether a refresh cycle may hit live providers.
// Outside market hours the cycle silently retains the cache; stale data while
// the market is closed is correct behavior, not an error. A forced refresh
// always fetches.
func (c *MarketClock) ShouldFetchLive(now time.Time, forced bool) bool {
	if forced {
		return true
	}
	ist := now.In(istZone)
	switch ist.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := ist.Hour()*60 + ist.Minute()
	open := marketOpenHour*60 + marketOpenMinute
	close := marketCloseHour*60 + marketCloseMinute
	return minutes >= open && minutes <= close
}

// NextDailyRefresh returns the next occurrence of the configured refresh time
// (normally market close) strictly after now, in IST.
func (c *MarketClock) NextDailyRefresh(now time.Time) time.Time {
	ist := now.In(istZone)
	next := time.Date(ist.Year(), ist.Month(), ist.Day(), c.refreshHour, c.refreshMinute, 0, 0, istZone)
	if !next.After(ist) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
