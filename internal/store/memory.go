package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/settleops/internal/domain"
)

// MemoryStore is an in-memory implementation of the transaction and DLQ
// stores for single-node development and deterministic tests. It mirrors
// the Postgres store's semantics: single-row atomic mutations, not-found
// sentinels, and newest-first listings.
type MemoryStore struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*domain.Transaction
	dlq          map[uuid.UUID]*domain.DLQEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[uuid.UUID]*domain.Transaction),
		dlq:          make(map[uuid.UUID]*domain.DLQEntry),
	}
}

func (m *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.transactions[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateTransactionStatus(_ context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) IncrementRetryCount(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return 0, domain.ErrTransactionNotFound
	}
	t.RetryCount++
	t.UpdatedAt = time.Now()
	return t.RetryCount, nil
}

func (m *MemoryStore) ResetTransaction(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	t.Status = domain.StatusPending
	t.RetryCount = 0
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, limit, offset int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (m *MemoryStore) ListPendingIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []domain.Transaction
	for _, t := range m.transactions {
		if t.Status == domain.StatusPending {
			pending = append(pending, *t)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })

	var ids []uuid.UUID
	for i, t := range pending {
		if i >= limit {
			break
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (m *MemoryStore) InsertDLQEntry(_ context.Context, e *domain.DLQEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.dlq[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) GetDLQEntry(_ context.Context, id uuid.UUID) (*domain.DLQEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlq[id]
	if !ok {
		return nil, domain.ErrDLQEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) DeleteDLQEntry(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dlq[id]; !ok {
		return domain.ErrDLQEntryNotFound
	}
	delete(m.dlq, id)
	return nil
}

func (m *MemoryStore) ListDLQEntries(_ context.Context, limit, offset int) ([]domain.DLQEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.DLQEntry, 0, len(m.dlq))
	for _, e := range m.dlq {
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
