package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/punchamoorthee/settleops/internal/domain"
)

const requestTimeout = 10 * time.Second

// HorizonClient verifies transactions against a Horizon-style ledger API.
// Verification is idempotent: the same hash can be checked repeatedly.
type HorizonClient struct {
	baseURL string
	client  *http.Client
}

func NewHorizonClient(baseURL string) *HorizonClient {
	return &HorizonClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type transactionRecord struct {
	Successful bool `json:"successful"`
}

// Verify reports whether the ledger confirms the transaction. A 404 is a
// definitive negative; network faults and 5xx responses are transient.
func (c *HorizonClient) Verify(ctx context.Context, hash string) (bool, error) {
	url := fmt.Sprintf("%s/transactions/%s", c.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("verification request build failed: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, domain.Transient(fmt.Errorf("ledger request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var record transactionRecord
		if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
			return false, fmt.Errorf("ledger response decode failed: %w", err)
		}
		return record.Successful, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 500:
		return false, domain.Transient(fmt.Errorf("ledger returned %d", resp.StatusCode))
	default:
		return false, fmt.Errorf("ledger returned unexpected status %d", resp.StatusCode)
	}
}
