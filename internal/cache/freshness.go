package cache

import "time"

// DefaultFreshnessWindow is how long a completed preload stays valid.
const DefaultFreshnessWindow = 5 * time.Minute

// Freshness is a fixed TTL measured from the last successful preload.
type Freshness struct {
	Window time.Duration
}

// Valid reports whether lastUpdate is set and no older than the window at now.
func (f Freshness) Valid(lastUpdate, now time.Time) bool {
	if lastUpdate.IsZero() {
		return false
	}
	return now.Sub(lastUpdate) <= f.Window
}
