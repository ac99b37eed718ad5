package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultTraceMaxAge is how old an unreferenced trace must be before
// the sweeper removes it.
const DefaultTraceMaxAge = time.Hour

// OrphanTraceStore deletes reasoning traces no chat turn references.
type OrphanTraceStore interface {
	DeleteOrphanTraces(ctx context.Context, olderThan time.Duration) (int64, error)
}

// TraceSweeper removes reasoning traces left behind by interrupted
// writes or manual imports. Turns and their traces are written together,
// so anything old and unreferenced is garbage.
type TraceSweeper struct {
	store  OrphanTraceStore
	maxAge time.Duration
}

func NewTraceSweeper(store OrphanTraceStore) *TraceSweeper {
	return &TraceSweeper{store: store, maxAge: DefaultTraceMaxAge}
}

// ProcessJobs implements the JobProcessor interface
func (s *TraceSweeper) ProcessJobs(ctx context.Context) error {
	deleted, err := s.store.DeleteOrphanTraces(ctx, s.maxAge)
	if err != nil {
		return fmt.Errorf("failed to sweep orphan traces: %w", err)
	}
	if deleted > 0 {
		log.Printf("trace sweeper: removed %d orphan trace(s)", deleted)
	}
	return nil
}
