package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
	"github.com/ForsunJay/TGTEST/pkg/database"
)

// CommentRepository handles comment database operations. Comments are
// append-only; there is no update or delete.
type CommentRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *database.DB, logger *zap.Logger) *CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	query := `
		INSERT INTO comments (request_id, author_id, text, status_from, status_to)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := executorFrom(ctx, r.db).ExecContext(ctx, query,
		comment.RequestID,
		comment.AuthorID,
		comment.Text,
		string(comment.StatusFrom),
		string(comment.StatusTo),
	)
	if err != nil {
		r.logger.Error("Failed to create comment", zap.Int64("request_id", comment.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	comment.ID = id
	return nil
}

// ListByRequest retrieves all comments on a request in creation order
func (r *CommentRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Comment, error) {
	query := `
		SELECT id, request_id, author_id, text, status_from, status_to, created_at
		FROM comments
		WHERE request_id = ?
		ORDER BY created_at, id
	`

	rows, err := executorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*entity.Comment
	for rows.Next() {
		var comment entity.Comment
		var statusFrom, statusTo string

		err := rows.Scan(
			&comment.ID,
			&comment.RequestID,
			&comment.AuthorID,
			&comment.Text,
			&statusFrom,
			&statusTo,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}

		comment.StatusFrom = lifecycle.Status(statusFrom)
		comment.StatusTo = lifecycle.Status(statusTo)
		comments = append(comments, &comment)
	}

	return comments, rows.Err()
}

var _ port.CommentRepository = (*CommentRepository)(nil)
