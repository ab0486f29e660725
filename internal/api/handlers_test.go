package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/settleops/internal/domain"
	"github.com/punchamoorthee/settleops/internal/idempotency"
	"github.com/punchamoorthee/settleops/internal/processor"
	"github.com/punchamoorthee/settleops/internal/readiness"
	"github.com/punchamoorthee/settleops/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedVerifier confirms or rejects every hash.
type fixedVerifier struct {
	confirmed bool
}

func (v fixedVerifier) Verify(context.Context, string) (bool, error) {
	return v.confirmed, nil
}

type testEnv struct {
	router  http.Handler
	store   *store.MemoryStore
	state   *readiness.State
	handler *Handler
}

func newTestEnv(t *testing.T, v processor.Verifier) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	proc := processor.NewProcessor(mem, mem, v)
	state := readiness.New(50 * time.Millisecond)
	h := NewHandler(mem, proc, state)
	coordinator := idempotency.NewCoordinator(idempotency.NewMemoryCache())
	return &testEnv{
		router:  NewRouter(h, coordinator, state),
		store:   mem,
		state:   state,
		handler: h,
	}
}

func (e *testEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func webhookBody(hash string) domain.WebhookPayload {
	return domain.WebhookPayload{
		ID:          "wh-1",
		Hash:        hash,
		Amount:      2500,
		FromAddress: "GFROM",
		ToAddress:   "GTO",
	}
}

func TestWebhookCreatesAndCompletesTransaction(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})

	w := env.do("POST", "/api/v1/webhook", webhookBody("abc123"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success       bool      `json:"success"`
		TransactionID uuid.UUID `json:"transaction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	tx, err := env.store.GetTransaction(context.Background(), resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.Equal(t, "abc123", tx.Hash)
	assert.Equal(t, int64(2500), tx.Amount)
}

func TestWebhookVerificationRejected(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: false})

	w := env.do("POST", "/api/v1/webhook", webhookBody("bad-hash"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	txs, _ := env.store.ListTransactions(context.Background(), 10, 0)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.StatusFailed, txs[0].Status)
}

func TestWebhookValidation(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})

	w := env.do("POST", "/api/v1/webhook", domain.WebhookPayload{Hash: "", Amount: 10}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do("POST", "/api/v1/webhook", domain.WebhookPayload{Hash: "h", Amount: 0}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestWebhookIdempotentReplay(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})
	headers := map[string]string{idempotencyHeader: "evt-42"}

	first := env.do("POST", "/api/v1/webhook", webhookBody("abc123"), headers)
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do("POST", "/api/v1/webhook", webhookBody("abc123"), headers)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	// The duplicate delivery must not create a second transaction.
	txs, _ := env.store.ListTransactions(context.Background(), 10, 0)
	assert.Len(t, txs, 1)
}

func TestProcessEndpointNotFound(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})

	w := env.do("POST", fmt.Sprintf("/api/v1/transactions/%s/process", uuid.New()), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessEndpointCompletesPending(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})
	tx := &domain.Transaction{ID: uuid.New(), Hash: "h1", Status: domain.StatusPending, Amount: 1}
	require.NoError(t, env.store.InsertTransaction(context.Background(), tx))

	w := env.do("POST", fmt.Sprintf("/api/v1/transactions/%s/process", tx.ID), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	got, _ := env.store.GetTransaction(context.Background(), tx.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestRequeueEndpointNotFound(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})

	w := env.do("POST", fmt.Sprintf("/api/v1/dlq/%s/requeue", uuid.New()), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequeueEndpointRoundTrip(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})
	tx := &domain.Transaction{ID: uuid.New(), Hash: "h2", Status: domain.StatusInDLQ, Amount: 1, RetryCount: 3}
	require.NoError(t, env.store.InsertTransaction(context.Background(), tx))
	entry := &domain.DLQEntry{ID: uuid.New(), TransactionID: tx.ID, ErrorReason: "pool timed out", RetryCount: 3}
	require.NoError(t, env.store.InsertDLQEntry(context.Background(), entry))

	w := env.do("POST", fmt.Sprintf("/api/v1/dlq/%s/requeue", entry.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	got, _ := env.store.GetTransaction(context.Background(), tx.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)

	dlq, _ := env.store.ListDLQEntries(context.Background(), 10, 0)
	assert.Empty(t, dlq)
}

func TestGetAndListEndpoints(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})
	tx := &domain.Transaction{ID: uuid.New(), Hash: "h3", Status: domain.StatusPending, Amount: 7}
	require.NoError(t, env.store.InsertTransaction(context.Background(), tx))

	w := env.do("GET", "/api/v1/transactions/"+tx.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, tx.ID, got.ID)

	w = env.do("GET", "/api/v1/transactions/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("GET", "/api/v1/transactions?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tx.ID.String())

	w = env.do("GET", "/api/v1/dlq", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDrainGatesAPIButNotProbes(t *testing.T) {
	env := newTestEnv(t, fixedVerifier{confirmed: true})
	env.state.StartDrain()

	w := env.do("POST", "/api/v1/webhook", webhookBody("abc"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "draining")
}
