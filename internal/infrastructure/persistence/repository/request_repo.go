package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/internal/domain/lifecycle"
	"github.com/ForsunJay/TGTEST/pkg/database"
)

// RequestRepository handles reimbursement request database operations.
// Amounts are stored as their exact decimal string, never as floats.
type RequestRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *database.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, creator_id, project, amount, currency, source,
	document_ref, note, period_start, period_end, status,
	created_at, updated_at
`

// Create inserts a new request
func (r *RequestRepository) Create(ctx context.Context, request *entity.Request) error {
	query := `
		INSERT INTO requests (
			creator_id, project, amount, currency, source,
			document_ref, note, period_start, period_end, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := executorFrom(ctx, r.db).ExecContext(ctx, query,
		request.UserID,
		request.Project,
		request.Amount.String(),
		request.Currency,
		request.Source,
		request.DocumentRef,
		request.Note,
		request.PeriodStart,
		request.PeriodEnd,
		string(request.Status),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	request.ID = id
	return nil
}

// GetByID retrieves a request by id
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	request, err := scanRequest(executorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return request, nil
}

// UpdateStatus applies a status change guarded by the status the caller
// observed. Zero affected rows on an existing request means another
// writer got there first.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id int64, expected, next lifecycle.Status) error {
	query := `
		UPDATE requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := executorFrom(ctx, r.db).ExecContext(ctx, query, string(next), id, string(expected))
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.Int64("id", id),
			zap.String("status", next.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrConflict
	}

	return nil
}

// Update rewrites the mutable fields of a request
func (r *RequestRepository) Update(ctx context.Context, request *entity.Request) error {
	query := `
		UPDATE requests
		SET amount = ?, note = ?, document_ref = ?,
			period_start = ?, period_end = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := executorFrom(ctx, r.db).ExecContext(ctx, query,
		request.Amount.String(),
		request.Note,
		request.DocumentRef,
		request.PeriodStart,
		request.PeriodEnd,
		request.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.Int64("id", request.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}

	return nil
}

// List retrieves requests matching the filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.Project != "" {
		query += " AND project = ?"
		args = append(args, filter.Project)
	}
	if filter.UserID != 0 {
		query += " AND creator_id = ?"
		args = append(args, filter.UserID)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := executorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(s scanner) (*entity.Request, error) {
	var request entity.Request
	var amount, status string
	var periodStart, periodEnd sql.NullTime

	err := s.Scan(
		&request.ID,
		&request.UserID,
		&request.Project,
		&amount,
		&request.Currency,
		&request.Source,
		&request.DocumentRef,
		&request.Note,
		&periodStart,
		&periodEnd,
		&status,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	request.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	request.Status = lifecycle.Status(status)
	if periodStart.Valid {
		request.PeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		request.PeriodEnd = &periodEnd.Time
	}

	return &request, nil
}

var _ port.RequestRepository = (*RequestRepository)(nil)
