package positions

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/shopspring/decimal"
)

// BatchEntry is the per-account part of a batch subscription
type BatchEntry struct {
	AccountID         string          `json:"accountId"`
	SubscriptionHands int64           `json:"subscriptionHands"`
	PackageFee        decimal.Decimal `json:"packageFee"`
	SubscribedAt      time.Time       `json:"subscribedAt"`
}

// BatchInput subscribes the same IPO in several accounts
type BatchInput struct {
	StockName  string          `json:"stockName"`
	StockCode  string          `json:"stockCode"`
	IssuePrice decimal.Decimal `json:"issuePrice"`
	BoardLot   int64           `json:"boardLot"`
	Entries    []BatchEntry    `json:"entries"`
}

// BatchFailure reports why one account's entry was not created
type BatchFailure struct {
	AccountID string `json:"accountId"`
	Error     string `json:"error"`
}

// BatchResult lists the created positions and the rejected entries
type BatchResult struct {
	Created  []domain.Position `json:"created"`
	Failures []BatchFailure    `json:"failures"`
}

// CreateBatch creates one position per entry. Invalid entries are reported
// in the result and do not prevent the others from being created.
func (s *Service) CreateBatch(in BatchInput) (*BatchResult, error) {
	if strings.TrimSpace(in.StockName) == "" {
		return nil, fmt.Errorf("%w: stock name is required", domain.ErrInvalidInput)
	}
	if len(in.Entries) == 0 {
		return nil, fmt.Errorf("%w: at least one account is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &BatchResult{
		Created:  make([]domain.Position, 0, len(in.Entries)),
		Failures: make([]BatchFailure, 0),
	}
	seen := make(map[string]bool, len(in.Entries))

	for _, e := range in.Entries {
		if seen[e.AccountID] {
			result.Failures = append(result.Failures, BatchFailure{AccountID: e.AccountID, Error: "duplicate account in batch"})
			continue
		}
		seen[e.AccountID] = true

		p, err := s.newPosition(CreateInput{
			AccountID:         e.AccountID,
			StockName:         in.StockName,
			StockCode:         in.StockCode,
			IssuePrice:        in.IssuePrice,
			PackageFee:        e.PackageFee,
			SubscriptionHands: e.SubscriptionHands,
			BoardLot:          in.BoardLot,
			SubscribedAt:      e.SubscribedAt,
		})
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{AccountID: e.AccountID, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, *p)
	}

	if len(result.Created) > 0 {
		if err := s.repo.UpsertMany(result.Created); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("stock", in.StockName).
		Int("created", len(result.Created)).
		Int("failed", len(result.Failures)).
		Msg("Batch subscription recorded")
	return result, nil
}
