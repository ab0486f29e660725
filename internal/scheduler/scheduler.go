package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

const batchSize = 50

// PendingSource lists transactions awaiting processing.
type PendingSource interface {
	ListPendingIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// Runner invokes Process on a batch of ids.
type Runner interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Scheduler drives batch processing of pending transactions on a fixed
// interval. Per-transaction failures are logged and never stop the batch;
// rejection and quarantine outcomes were already persisted by the
// processor by the time Process returns.
type Scheduler struct {
	source   PendingSource
	runner   Runner
	interval time.Duration
}

func New(source PendingSource, runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{source: source, runner: runner, interval: interval}
}

// Run blocks until ctx is cancelled, executing one batch per tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("transaction processor job stopped")
			return
		case <-ticker.C:
			s.runBatch(ctx)
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context) {
	ids, err := s.source.ListPendingIDs(ctx, batchSize)
	if err != nil {
		log.Printf("transaction processor job failed to list pending: %v", err)
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.runner.Process(ctx, id); err != nil {
			log.Printf("transaction processor job: transaction %s: %v", id, err)
		}
	}
}
