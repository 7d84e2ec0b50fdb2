// Package jobs keeps a ledger of completed compression jobs, either in
// memory or in PostgreSQL.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// Record describes one finished compression job.
type Record struct {
	ID          string                   `json:"id"`
	Source      string                   `json:"source"`
	InputBytes  int64                    `json:"input_bytes"`
	OutputBytes int64                    `json:"output_bytes"`
	BitLength   uint64                   `json:"bit_length"`
	Symbols     int                      `json:"symbols"`
	Workers     int                      `json:"workers"`
	Format      string                   `json:"format"`
	InputDigest string                   `json:"input_digest"`
	CacheHit    bool                     `json:"cache_hit"`
	Stages      map[string]time.Duration `json:"stages_ns"`
	CreatedAt   time.Time                `json:"created_at"`
}

// NewRecord returns a record with a fresh ID and creation time.
func NewRecord(source string) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Source:    source,
		Stages:    make(map[string]time.Duration),
		CreatedAt: time.Now().UTC(),
	}
}

// Ratio returns output size over input size, or 0 for an empty input.
func (r *Record) Ratio() float64 {
	if r.InputBytes == 0 {
		return 0
	}
	return float64(r.OutputBytes) / float64(r.InputBytes)
}

func (r *Record) clone() *Record {
	copied := *r
	if r.Stages != nil {
		copied.Stages = make(map[string]time.Duration, len(r.Stages))
		for stage, d := range r.Stages {
			copied.Stages[stage] = d
		}
	}
	return &copied
}

// Store persists job records.
type Store interface {
	// Save inserts a record. Saving an existing ID replaces it.
	Save(ctx context.Context, record *Record) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
