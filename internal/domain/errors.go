package domain

import (
	"context"
	"errors"
	"net"
	"syscall"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDLQEntryNotFound    = errors.New("dlq entry not found")

	// ErrVerificationRejected means the ledger definitively reported the
	// transaction as unsuccessful. Business rejection, never retried.
	ErrVerificationRejected = errors.New("transaction verification failed")
)

// TransientError marks a failure expected to resolve on retry: pool
// acquisition timeouts and connection/timeout-class I/O faults. Anything
// not wrapped in it is permanent for the attempt.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err belongs to the bounded retryable class.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
