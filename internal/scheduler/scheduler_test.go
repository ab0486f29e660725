package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (f *fakeSource) ListPendingIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ids) <= limit {
		out := f.ids
		f.ids = nil
		return out, nil
	}
	out := f.ids[:limit]
	f.ids = f.ids[limit:]
	return out, nil
}

type fakeRunner struct {
	mu        sync.Mutex
	processed []uuid.UUID
	err       error
}

func (f *fakeRunner) Process(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return f.err
}

func TestSchedulerProcessesPendingBatch(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	source := &fakeSource{ids: append([]uuid.UUID(nil), ids...)}
	runner := &fakeRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(source, runner, 10*time.Millisecond).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.processed) == len(ids)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, ids, runner.processed)
}

func TestSchedulerSurvivesProcessErrors(t *testing.T) {
	source := &fakeSource{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	runner := &fakeRunner{err: errors.New("verification failed")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(source, runner, 10*time.Millisecond).Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return len(runner.processed) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(source, runner, time.Millisecond).Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
