package api

import (
	"bytes"
	"log"
	"net/http"
	"strings"

	"github.com/punchamoorthee/settleops/internal/idempotency"
	"github.com/punchamoorthee/settleops/internal/readiness"
)

const idempotencyHeader = "X-Idempotency-Key"

// ReadinessMiddleware rejects new intake while the service is draining.
// Already-admitted requests are unaffected; they run to completion inside
// the drain window.
func ReadinessMiddleware(state *readiness.State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !state.IsReady() {
				w.Header().Set("Connection", "close")
				respondWithError(w, http.StatusServiceUnavailable, "Service is draining")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware deduplicates requests carrying an idempotency key.
// A missing header bypasses the coordinator entirely; a malformed key is
// rejected before any business logic. Admitted requests have their response
// captured: 2xx outcomes are cached for replay, others release the lock so
// the caller can retry with the same key.
func IdempotencyMiddleware(coordinator *idempotency.Coordinator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !validKey(key) {
				respondWithError(w, http.StatusBadRequest, "Invalid idempotency key format")
				return
			}

			outcome, cached := coordinator.Admit(r.Context(), key)
			switch outcome {
			case idempotency.Cached:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(cached.Status)
				w.Write([]byte(cached.Body))
			case idempotency.InProgress:
				w.Header().Set("Retry-After", "5")
				respondWithJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":       "Request is currently being processed",
					"retry_after": 5,
				})
			case idempotency.New:
				rec := newResponseRecorder(w)
				next.ServeHTTP(rec, r)

				if rec.status >= 200 && rec.status < 300 {
					if err := coordinator.Complete(r.Context(), key, rec.status, rec.body.String()); err != nil {
						log.Printf("failed to store idempotency response: %v", err)
					}
				} else {
					if err := coordinator.Abort(r.Context(), key); err != nil {
						log.Printf("failed to release idempotency lock: %v", err)
					}
				}
			}
		})
	}
}

// validKey bounds the caller-supplied token: non-blank, at most 255 bytes,
// printable ASCII only.
func validKey(key string) bool {
	if strings.TrimSpace(key) == "" || len(key) > 255 {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return false
		}
	}
	return true
}

// responseRecorder tees the response so the middleware can cache it after
// the handler runs.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
