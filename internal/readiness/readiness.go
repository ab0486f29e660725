package readiness

import (
	"log"
	"sync/atomic"
	"time"
)

// State gates request intake during startup and shutdown. The ingress
// layer reads IsReady on every request; only the process lifecycle writes.
// A single instance is constructor-injected wherever it is needed.
type State struct {
	ready        atomic.Bool
	draining     atomic.Bool
	drainTimeout time.Duration
}

// New returns a ready State with the given drain timeout.
func New(drainTimeout time.Duration) *State {
	s := &State{drainTimeout: drainTimeout}
	s.ready.Store(true)
	return s
}

// IsReady reports whether new intake may be admitted.
func (s *State) IsReady() bool {
	return s.ready.Load()
}

// IsDraining reports whether a drain was deliberately started, as opposed
// to the service never having become ready.
func (s *State) IsDraining() bool {
	return s.draining.Load()
}

// DrainTimeout returns the configured upper bound for in-flight work.
func (s *State) DrainTimeout() time.Duration {
	return s.drainTimeout
}

// SetReady marks the service ready and clears any drain. New already
// returns a ready State; this re-opens intake after a drain was started.
func (s *State) SetReady() {
	s.ready.Store(true)
	s.draining.Store(false)
}

// StartDrain stops intake and returns the drain timeout. Idempotent.
func (s *State) StartDrain() time.Duration {
	s.ready.Store(false)
	s.draining.Store(true)
	log.Printf("starting connection draining with timeout of %s", s.drainTimeout)
	return s.drainTimeout
}

// WaitForDrain blocks for the full drain timeout while draining. It does
// not track individual requests; the timeout is the upper bound the
// ingress layer must honor by rejecting new intake once IsReady is false.
func (s *State) WaitForDrain() {
	if s.IsReady() {
		return
	}
	log.Printf("waiting %s for in-flight requests to complete", s.drainTimeout)
	time.Sleep(s.drainTimeout)
	log.Printf("drain period complete, shutting down")
}
