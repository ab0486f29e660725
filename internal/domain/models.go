package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the persisted lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusInDLQ      TransactionStatus = "dlq"
)

// Transaction is a ledger-anchored transfer working its way through the
// settlement pipeline. Payment attributes are immutable after creation;
// only the processor mutates Status and RetryCount.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	Hash        string            `json:"hash"`
	Status      TransactionStatus `json:"status"`
	Amount      int64             `json:"amount"`
	FromAddress string            `json:"from_address"`
	ToAddress   string            `json:"to_address"`
	RetryCount  int               `json:"retry_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// DLQEntry quarantines a transaction that exhausted its retry budget.
// At most one live entry exists per transaction id; requeueing deletes it.
type DLQEntry struct {
	ID                uuid.UUID `json:"id"`
	TransactionID     uuid.UUID `json:"transaction_id"`
	ErrorReason       string    `json:"error_reason"`
	Trace             string    `json:"trace"`
	RetryCount        int       `json:"retry_count"`
	OriginalCreatedAt time.Time `json:"original_created_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// WebhookPayload is the inbound callback referencing an anchored transfer.
type WebhookPayload struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	Amount      int64  `json:"amount"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
}

// CachedResponse is the replayable outcome stored by the idempotency
// coordinator: the HTTP status and body of the first successful response.
type CachedResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}
