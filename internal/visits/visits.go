// Package visits counts the days on which a visitor came back to the site.
package visits

import (
	"strconv"
	"time"
)

// Session keys holding the visitor state.
const (
	CountKey     = "visits"
	LastVisitKey = "last_visit"
)

// TimeLayout is the encoding of the last visit timestamp in the session.
const TimeLayout = "2006-01-02 15:04:05.999999"

// Store is the subset of a session the counter needs.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Count returns the visit count and last visit time after a visit at now.
// The count grows only when at least one whole day passed since priorLast;
// otherwise priorLast is returned unchanged, not refreshed.
func Count(priorCount int, priorLast, now time.Time) (int, time.Time) {
	days := int64(now.Sub(priorLast) / (24 * time.Hour))
	if days > 0 {
		return priorCount + 1, now
	}

	return priorCount, priorLast
}

// Track applies Count to the values kept in store, writes them back and
// returns the resulting count. Missing or unreadable values fall back to a
// count of 1 and a last visit of now.
func Track(store Store, now time.Time) int {
	count := 1
	if raw, ok := store.Get(CountKey); ok {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			count = parsed
		}
	}

	last := now
	if raw, ok := store.Get(LastVisitKey); ok {
		if parsed, err := time.ParseInLocation(TimeLayout, raw, now.Location()); err == nil {
			last = parsed
		}
	}

	count, last = Count(count, last, now)

	store.Set(CountKey, strconv.Itoa(count))
	store.Set(LastVisitKey, last.Format(TimeLayout))

	return count
}
