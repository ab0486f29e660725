package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/settleops/internal/idempotency"
	"github.com/punchamoorthee/settleops/internal/readiness"
)

// NewRouter wires the full HTTP surface. Health, readiness and metrics stay
// outside the readiness gate so probes keep working during a drain.
func NewRouter(h *Handler, coordinator *idempotency.Coordinator, state *readiness.State) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/ready", h.ReadyHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(ReadinessMiddleware(state))

	webhook := IdempotencyMiddleware(coordinator)(http.HandlerFunc(h.WebhookHandler))
	apiV1.Handle("/webhook", webhook).Methods("POST")

	apiV1.HandleFunc("/transactions", h.ListTransactionsHandler).Methods("GET")
	apiV1.HandleFunc("/transactions/{id}", h.GetTransactionHandler).Methods("GET")
	apiV1.HandleFunc("/transactions/{id}/process", h.ProcessTransactionHandler).Methods("POST")
	apiV1.HandleFunc("/dlq", h.ListDLQHandler).Methods("GET")
	apiV1.HandleFunc("/dlq/{id}/requeue", h.RequeueDLQHandler).Methods("POST")

	return r
}
