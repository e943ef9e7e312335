package entity

import "time"

// Role constants for User
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleFinControl = "fincontrol"
)

// User represents a bot user identified by their Telegram id
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}
