package repository

import (
	"context"
	"time"

	"github.com/nijaru/yt-chat/models"
)

// SessionRepository is the durable layer behind the session store. Find
// returns a NotFound error for unknown users; every other failure is a
// StorageError.
type SessionRepository interface {
	Save(ctx context.Context, record *models.SessionRecord) error
	Find(ctx context.Context, userID string) (*models.SessionRecord, error)
	Delete(ctx context.Context, userID string) error
	// DeleteIfExpired removes the user's record only if storage still holds
	// it with expires_at <= now, checked atomically with the delete.
	DeleteIfExpired(ctx context.Context, userID string, now time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	Close() error
}
