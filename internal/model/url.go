package model

import (
	"time"

	"github.com/google/uuid"
)

// URL represents a shortened URL entry in the system
type URL struct {
	ID          string    `json:"id" db:"id"`
	OriginalURL string    `json:"original_url" db:"original_url"`
	ShortCode   string    `json:"short_code" db:"short_code"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       *string   `json:"title" db:"title"`
	Clicks      int64     `json:"clicks" db:"clicks"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewURL builds a URL record owned by userID with zero clicks.
func NewURL(originalURL, shortCode, userID string, title *string) *URL {
	now := time.Now().UTC()
	return &URL{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		UserID:      userID,
		Title:       title,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
