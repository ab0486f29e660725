package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/settleops/internal/domain"
	"github.com/punchamoorthee/settleops/internal/processor"
	"github.com/punchamoorthee/settleops/internal/readiness"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settleops_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settleops_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Store is the read/insert capability the handlers need; the processor owns
// all status mutation.
type Store interface {
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	ListTransactions(ctx context.Context, limit, offset int) ([]domain.Transaction, error)
	ListDLQEntries(ctx context.Context, limit, offset int) ([]domain.DLQEntry, error)
}

type Handler struct {
	store     Store
	processor *processor.Processor
	readiness *readiness.State
}

func NewHandler(s Store, p *processor.Processor, r *readiness.State) *Handler {
	return &Handler{store: s, processor: p, readiness: r}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.readiness.IsReady() {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not ready",
			"draining": h.readiness.IsDraining(),
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// WebhookHandler ingests a ledger callback: it persists a pending
// transaction and drives it through the processor synchronously. The
// idempotency middleware wraps this route.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/webhook"))
	defer timer.ObserveDuration()

	var payload domain.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/webhook", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if payload.Hash == "" {
		httpRequestsTotal.WithLabelValues("POST", "/webhook", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Transaction hash is required")
		return
	}
	if payload.Amount <= 0 {
		httpRequestsTotal.WithLabelValues("POST", "/webhook", "422").Inc()
		respondWithError(w, http.StatusUnprocessableEntity, "Positive amount required")
		return
	}

	tx := &domain.Transaction{
		ID:          uuid.New(),
		Hash:        payload.Hash,
		Status:      domain.StatusPending,
		Amount:      payload.Amount,
		FromAddress: payload.FromAddress,
		ToAddress:   payload.ToAddress,
	}
	if err := h.store.InsertTransaction(r.Context(), tx); err != nil {
		httpRequestsTotal.WithLabelValues("POST", "/webhook", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "Failed to persist transaction")
		return
	}

	if err := h.processor.Process(r.Context(), tx.ID); err != nil {
		code := http.StatusInternalServerError
		msg := "Transaction quarantined"
		if errors.Is(err, domain.ErrVerificationRejected) {
			code = http.StatusUnprocessableEntity
			msg = "Transaction verification failed"
		}
		httpRequestsTotal.WithLabelValues("POST", "/webhook", strconv.Itoa(code)).Inc()
		respondWithJSON(w, code, map[string]interface{}{
			"success":        false,
			"transaction_id": tx.ID,
			"error":          msg,
		})
		return
	}

	httpRequestsTotal.WithLabelValues("POST", "/webhook", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"transaction_id": tx.ID,
		"message":        "Webhook processed successfully",
	})
}

// ProcessTransactionHandler triggers processing for one transaction. Also
// used by operators to re-drive a row left in processing by a crash.
func (h *Handler) ProcessTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	if err := h.processor.Process(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrTransactionNotFound):
			respondWithError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, domain.ErrVerificationRejected):
			respondWithError(w, http.StatusUnprocessableEntity, "Transaction verification failed")
		default:
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transaction_id": id})
}

// RequeueDLQHandler re-admits a quarantined transaction as pending.
func (h *Handler) RequeueDLQHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid DLQ entry id")
		return
	}

	if err := h.processor.Requeue(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrDLQEntryNotFound) {
			respondWithError(w, http.StatusNotFound, "DLQ entry not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true, "dlq_id": id})
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			respondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	txs, err := h.store.ListTransactions(r.Context(), limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": txs})
}

func (h *Handler) ListDLQHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := h.store.ListDLQEntries(r.Context(), limit, offset)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.DLQEntry{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
