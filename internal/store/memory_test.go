package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/settleops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, m *MemoryStore, status domain.TransactionStatus, createdAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, m.InsertTransaction(context.Background(), &domain.Transaction{
		ID:        id,
		Hash:      "h-" + id.String()[:8],
		Status:    status,
		Amount:    1,
		CreatedAt: createdAt,
	}))
	return id
}

func TestMemoryStoreNotFoundSentinels(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	_, err := m.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	err = m.UpdateTransactionStatus(ctx, uuid.New(), domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)

	_, err = m.GetDLQEntry(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrDLQEntryNotFound)

	err = m.DeleteDLQEntry(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrDLQEntryNotFound)
}

func TestMemoryStoreResetClearsRetryCount(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	id := seed(t, m, domain.StatusInDLQ, time.Now())

	for i := 1; i <= 3; i++ {
		count, err := m.IncrementRetryCount(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	require.NoError(t, m.ResetTransaction(ctx, id))
	tx, err := m.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.Equal(t, 0, tx.RetryCount)
}

func TestMemoryStoreListPendingOldestFirst(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	newest := seed(t, m, domain.StatusPending, base.Add(2*time.Second))
	oldest := seed(t, m, domain.StatusPending, base)
	seed(t, m, domain.StatusCompleted, base.Add(time.Second))

	ids, err := m.ListPendingIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldest, newest}, ids)

	ids, err = m.ListPendingIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{oldest}, ids)
}

func TestMemoryStoreListTransactionsPagination(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		seed(t, m, domain.StatusPending, base.Add(time.Duration(i)*time.Second))
	}

	pageOne, err := m.ListTransactions(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, pageOne, 2)
	assert.True(t, pageOne[0].CreatedAt.After(pageOne[1].CreatedAt))

	pageThree, err := m.ListTransactions(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, pageThree, 1)

	empty, err := m.ListTransactions(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
