package entity

import (
	"time"

	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

// Comment is an append-only child of a request. StatusFrom/StatusTo are
// set only when the comment records a lifecycle transition.
type Comment struct {
	ID         int64            `json:"id"`
	RequestID  int64            `json:"request_id"`
	AuthorID   int64            `json:"author_id"`
	Text       string           `json:"text"`
	StatusFrom lifecycle.Status `json:"status_from,omitempty"`
	StatusTo   lifecycle.Status `json:"status_to,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// IsTransition returns true if the comment accompanies a status change
func (c *Comment) IsTransition() bool {
	return c.StatusTo != ""
}
