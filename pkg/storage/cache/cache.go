// Package cache keeps recently produced compression outputs keyed by the
// digest of their input, so repeated requests for the same bytes skip the
// worker pool entirely.
package cache

import (
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound is returned for keys that are not cached.
	ErrNotFound = errors.New("entry not found in cache")

	// ErrInvalidEntry is returned when storing an empty key or nil entry.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Entry is one cached compression output.
type Entry struct {
	JobID      string
	Format     string
	Output     []byte
	BitLength  uint64
	Symbols    int
	InputBytes int
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s *Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Key builds the cache key for an input digest and output format.
func Key(digest []byte, format string) string {
	return hex.EncodeToString(digest) + ":" + format
}
