package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/settleops/internal/domain"
)

// Store persists transactions and DLQ entries in Postgres. Each status
// write is an independent single-row update; the processor relies on that
// so external readers always observe a consistent, monotonically advancing
// state even if the process crashes between steps.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// GetTransaction retrieves a single transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Db.QueryRow(ctx,
		`SELECT id, hash, status, amount, from_address, to_address, retry_count, created_at, updated_at
		 FROM transactions WHERE id = $1`,
		id).Scan(&t.ID, &t.Hash, &t.Status, &t.Amount, &t.FromAddress, &t.ToAddress,
		&t.RetryCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}
	return &t, nil
}

// InsertTransaction persists a new transaction in its initial state.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO transactions (id, hash, status, amount, from_address, to_address, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Hash, t.Status, t.Amount, t.FromAddress, t.ToAddress, t.RetryCount)
	if err != nil {
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

// UpdateTransactionStatus performs an atomic single-row status update.
func (s *Store) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	tag, err := s.Db.Exec(ctx,
		"UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	if err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// IncrementRetryCount bumps the persisted retry counter and returns the
// new value. The counter only ever increases outside of a requeue.
func (s *Store) IncrementRetryCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.Db.QueryRow(ctx,
		"UPDATE transactions SET retry_count = retry_count + 1, updated_at = NOW() WHERE id = $1 RETURNING retry_count",
		id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrTransactionNotFound
		}
		return 0, fmt.Errorf("retry count update failed: %w", err)
	}
	return count, nil
}

// ResetTransaction returns a quarantined transaction to pending with its
// retry counter cleared. Used only by DLQ requeue.
func (s *Store) ResetTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Db.Exec(ctx,
		"UPDATE transactions SET status = 'pending', retry_count = 0, updated_at = NOW() WHERE id = $1",
		id)
	if err != nil {
		return fmt.Errorf("transaction reset failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// ListTransactions returns transactions newest-first.
func (s *Store) ListTransactions(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, hash, status, amount, from_address, to_address, retry_count, created_at, updated_at
		 FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction list failed: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.Hash, &t.Status, &t.Amount, &t.FromAddress, &t.ToAddress,
			&t.RetryCount, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("transaction scan failed: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListPendingIDs returns ids of pending transactions, oldest first, for
// the batch processing job.
func (s *Store) ListPendingIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT id FROM transactions WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1",
		limit)
	if err != nil {
		return nil, fmt.Errorf("pending list failed: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pending scan failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertDLQEntry quarantines a transaction. The processor only calls this
// for transactions leaving a non-terminal state, so a transaction has at
// most one live entry at a time.
func (s *Store) InsertDLQEntry(ctx context.Context, e *domain.DLQEntry) error {
	_, err := s.Db.Exec(ctx,
		`INSERT INTO transaction_dlq (id, transaction_id, error_reason, trace, retry_count, original_created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.TransactionID, e.ErrorReason, e.Trace, e.RetryCount, e.OriginalCreatedAt)
	if err != nil {
		return fmt.Errorf("dlq insert failed: %w", err)
	}
	return nil
}

// GetDLQEntry retrieves a DLQ entry by its own id.
func (s *Store) GetDLQEntry(ctx context.Context, id uuid.UUID) (*domain.DLQEntry, error) {
	var e domain.DLQEntry
	err := s.Db.QueryRow(ctx,
		`SELECT id, transaction_id, error_reason, trace, retry_count, original_created_at, created_at
		 FROM transaction_dlq WHERE id = $1`,
		id).Scan(&e.ID, &e.TransactionID, &e.ErrorReason, &e.Trace, &e.RetryCount,
		&e.OriginalCreatedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDLQEntryNotFound
		}
		return nil, fmt.Errorf("dlq lookup failed: %w", err)
	}
	return &e, nil
}

// DeleteDLQEntry removes an entry after a successful requeue.
func (s *Store) DeleteDLQEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Db.Exec(ctx, "DELETE FROM transaction_dlq WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("dlq delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDLQEntryNotFound
	}
	return nil
}

// ListDLQEntries returns quarantined entries newest-first.
func (s *Store) ListDLQEntries(ctx context.Context, limit, offset int) ([]domain.DLQEntry, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, transaction_id, error_reason, trace, retry_count, original_created_at, created_at
		 FROM transaction_dlq ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dlq list failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.DLQEntry
	for rows.Next() {
		var e domain.DLQEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.ErrorReason, &e.Trace, &e.RetryCount,
			&e.OriginalCreatedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("dlq scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
