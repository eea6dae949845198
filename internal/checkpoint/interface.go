// Package checkpoint persists backfill progress so that an interrupted run
// can resume without refetching or duplicating records.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

// ErrPartialCheckpoint is returned by Load when only one of the two
// checkpoint halves exists. Resuming from it is unsafe; the operator has to
// remove the leftover half.
var ErrPartialCheckpoint = errors.New("partial checkpoint")

// Store persists a Snapshot as two halves: the accumulated records and the
// processed identifier set.
type Store interface {
	// Load returns the persisted snapshot, or nil when no checkpoint exists.
	Load(ctx context.Context) (*Snapshot, error)
	// Save overwrites the checkpoint with s.
	Save(ctx context.Context, s *Snapshot) error
	// Clear removes the checkpoint. Clearing a missing checkpoint is not an error.
	Clear(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// Snapshot is the durable state of a run.
type Snapshot struct {
	Records   []dataset.Record
	Processed []dataset.Identifier
	SavedAt   time.Time

	// Dropped counts records discarded by Reconcile on load.
	Dropped int
}

// NewSnapshot captures the current state of d.
func NewSnapshot(d *dataset.Dataset, now time.Time) *Snapshot {
	return &Snapshot{
		Records:   d.Records(),
		Processed: d.Processed(),
		SavedAt:   now.UTC(),
	}
}

// Dataset rebuilds the accumulator described by the snapshot.
func (s *Snapshot) Dataset() *dataset.Dataset {
	return dataset.FromSnapshot(s.Records, s.Processed)
}

// Reconcile drops records whose identifier is not in the processed set and
// returns how many were dropped. Such records appear when a crash lands
// between the two halves of a file save; their identifiers are refetched.
func (s *Snapshot) Reconcile() int {
	processed := make(map[dataset.Identifier]struct{}, len(s.Processed))
	for _, id := range s.Processed {
		processed[id] = struct{}{}
	}

	kept := s.Records[:0]
	for _, r := range s.Records {
		if _, ok := processed[r.PlayerID]; ok {
			kept = append(kept, r)
		}
	}
	dropped := len(s.Records) - len(kept)
	s.Records = kept
	s.Dropped += dropped
	return dropped
}
