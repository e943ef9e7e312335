package port

import (
	"context"
	"errors"

	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded write loses a concurrent race
	ErrConflict = errors.New("conflicting concurrent update")
)

// RequestFilter narrows List results. Zero values mean "any".
type RequestFilter struct {
	Status  lifecycle.Status
	Source  string
	Project string
	UserID  int64
	Limit   int
	Offset  int
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	GetOrCreate(ctx context.Context, telegramID int64, username, role string) (*entity.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

// RequestRepository defines persistence operations for Request.
// UpdateStatus is guarded by the expected current status: the write is
// applied only if the stored status still matches, otherwise ErrConflict.
type RequestRepository interface {
	Create(ctx context.Context, request *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	UpdateStatus(ctx context.Context, id int64, expected, next lifecycle.Status) error
	Update(ctx context.Context, request *entity.Request) error
	List(ctx context.Context, filter RequestFilter) ([]*entity.Request, error)
}

// CommentRepository defines persistence operations for Comment.
// Comments are append-only.
type CommentRepository interface {
	Create(ctx context.Context, comment *entity.Comment) error
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.Comment, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
