package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

// Request represents a persisted expense-reimbursement request.
// Once a request leaves draft state only the lifecycle engine mutates
// Status and UpdatedAt; field edits go through the explicit edit path.
type Request struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	Project     string           `json:"project"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Source      string           `json:"source"`
	DocumentRef string           `json:"document_ref,omitempty"`
	Note        string           `json:"note,omitempty"`
	PeriodStart *time.Time       `json:"period_start,omitempty"`
	PeriodEnd   *time.Time       `json:"period_end,omitempty"`
	Status      lifecycle.Status `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
