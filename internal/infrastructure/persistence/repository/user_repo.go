package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ForsunJay/TGTEST/internal/application/port"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
	"github.com/ForsunJay/TGTEST/pkg/database"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate returns the user registered under the Telegram id, creating
// the row on first contact. Username and role are refreshed on every call
// so renames and configuration changes take effect.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, role string) (*entity.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, role)
		VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			role = excluded.role
	`

	if _, err := executorFrom(ctx, r.db).ExecContext(ctx, query, telegramID, username, role); err != nil {
		r.logger.Error("Failed to upsert user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return r.GetByTelegramID(ctx, telegramID)
}

// GetByTelegramID retrieves a user by Telegram id
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*entity.User, error) {
	query := `
		SELECT id, telegram_id, username, role, created_at
		FROM users
		WHERE telegram_id = ?
	`

	var user entity.User
	err := executorFrom(ctx, r.db).QueryRowContext(ctx, query, telegramID).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.Role,
		&user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// List retrieves all registered users
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	query := `
		SELECT id, telegram_id, username, role, created_at
		FROM users
		ORDER BY created_at
	`

	rows, err := executorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var user entity.User
		if err := rows.Scan(&user.ID, &user.TelegramID, &user.Username, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

var _ port.UserRepository = (*UserRepository)(nil)
