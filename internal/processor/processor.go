package processor

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/settleops/internal/domain"
)

const (
	maxRetries  = 3
	baseDelayMs = 100
)

var (
	processedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleops_transactions_processed_total",
		Help: "Processing outcomes by terminal result of the call",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settleops_transaction_retries_total",
		Help: "Transient-failure retries performed by the processor",
	})
)

// TransactionStore is the persistence capability the processor mutates.
// The processor is the sole writer of status and retry_count.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error
	IncrementRetryCount(ctx context.Context, id uuid.UUID) (int, error)
	ResetTransaction(ctx context.Context, id uuid.UUID) error
}

// DLQStore quarantines transactions that exhausted their retry budget.
type DLQStore interface {
	InsertDLQEntry(ctx context.Context, e *domain.DLQEntry) error
	GetDLQEntry(ctx context.Context, id uuid.UUID) (*domain.DLQEntry, error)
	DeleteDLQEntry(ctx context.Context, id uuid.UUID) error
}

// Verifier confirms a transaction hash against the external ledger.
// Must be safe to call repeatedly for the same hash.
type Verifier interface {
	Verify(ctx context.Context, hash string) (bool, error)
}

// Processor drives a transaction through verification to a terminal state,
// retrying transient faults with exponential backoff and quarantining
// permanent failures into the DLQ.
//
// Process does not serialize concurrent calls on the same transaction id;
// deduplication of the ingestion path is the idempotency coordinator's job.
// Every status transition is persisted before the next step proceeds.
type Processor struct {
	store    TransactionStore
	dlq      DLQStore
	verifier Verifier

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewProcessor(store TransactionStore, dlq DLQStore, verifier Verifier) *Processor {
	return &Processor{
		store:    store,
		dlq:      dlq,
		verifier: verifier,
		sleep:    sleepCtx,
	}
}

// Process verifies one transaction and settles its state:
//
//	pending    -> processing -> completed   (ledger confirms)
//	processing -> failed                    (ledger rejects; no retry)
//	processing -> failed -> processing ...  (transient fault, budget left)
//	processing -> dlq                       (budget exhausted or permanent fault)
//
// A transaction already in completed is left untouched. A quarantined
// transaction is also terminal: the only way out of dlq is an explicit
// Requeue, never another Process call.
func (p *Processor) Process(ctx context.Context, txID uuid.UUID) error {
	for {
		tx, err := p.store.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if tx.Status == domain.StatusCompleted || tx.Status == domain.StatusInDLQ {
			return nil
		}

		if err := p.store.UpdateTransactionStatus(ctx, txID, domain.StatusProcessing); err != nil {
			return err
		}

		confirmed, verifyErr := p.verifier.Verify(ctx, tx.Hash)
		if verifyErr == nil {
			if confirmed {
				if err := p.store.UpdateTransactionStatus(ctx, txID, domain.StatusCompleted); err != nil {
					return err
				}
				processedTotal.WithLabelValues("completed").Inc()
				log.Printf("transaction %s processed successfully", txID)
				return nil
			}
			// Definitive rejection from the ledger. Business outcome,
			// not a fault: no retry, no quarantine.
			if err := p.store.UpdateTransactionStatus(ctx, txID, domain.StatusFailed); err != nil {
				return err
			}
			processedTotal.WithLabelValues("rejected").Inc()
			return domain.ErrVerificationRejected
		}

		if domain.IsTransient(verifyErr) && tx.RetryCount < maxRetries {
			retryCount, err := p.store.IncrementRetryCount(ctx, txID)
			if err != nil {
				return err
			}
			if err := p.store.UpdateTransactionStatus(ctx, txID, domain.StatusFailed); err != nil {
				return err
			}
			retriesTotal.Inc()
			delay := backoff(retryCount)
			log.Printf("transient error processing transaction %s: %v. Retry %d/%d after %s",
				txID, verifyErr, retryCount, maxRetries, delay)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		log.Printf("failed to process transaction %s after %d retries: %v", txID, tx.RetryCount, verifyErr)
		if err := p.moveToDLQ(ctx, tx, verifyErr); err != nil {
			return err
		}
		processedTotal.WithLabelValues("quarantined").Inc()
		return verifyErr
	}
}

// Requeue returns a quarantined transaction to pending and deletes the DLQ
// entry. It does not trigger processing; re-admission goes through the same
// entry points as new transactions.
func (p *Processor) Requeue(ctx context.Context, dlqID uuid.UUID) error {
	entry, err := p.dlq.GetDLQEntry(ctx, dlqID)
	if err != nil {
		return err
	}

	if err := p.store.ResetTransaction(ctx, entry.TransactionID); err != nil {
		return err
	}

	if err := p.dlq.DeleteDLQEntry(ctx, dlqID); err != nil {
		return err
	}

	log.Printf("DLQ entry %s requeued for transaction %s", dlqID, entry.TransactionID)
	return nil
}

func (p *Processor) moveToDLQ(ctx context.Context, tx *domain.Transaction, cause error) error {
	entry := &domain.DLQEntry{
		ID:                uuid.New(),
		TransactionID:     tx.ID,
		ErrorReason:       cause.Error(),
		Trace:             string(debug.Stack()),
		RetryCount:        tx.RetryCount,
		OriginalCreatedAt: tx.CreatedAt,
	}
	if err := p.dlq.InsertDLQEntry(ctx, entry); err != nil {
		return fmt.Errorf("dlq quarantine failed: %w", err)
	}
	if err := p.store.UpdateTransactionStatus(ctx, tx.ID, domain.StatusInDLQ); err != nil {
		return err
	}
	log.Printf("transaction %s moved to DLQ", tx.ID)
	return nil
}

// backoff returns 100ms * 2^(n-1) for the n-th retry: 100, 200, 400ms.
func backoff(retryCount int) time.Duration {
	return time.Duration(baseDelayMs<<(retryCount-1)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
