package repositories

import (
	"context"
	"errors"

	"github.com/prudhvinik1/devicerelay/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPersistenceDisabled = errors.New("notification persistence is not configured")
	ErrMissingID           = errors.New("persistence response carried no id")
)

// NotificationRepository is the system of record for notification history.
// Create returns the id the store assigned.
type NotificationRepository interface {
	Create(ctx context.Context, record *models.NotificationRecord) (string, error)
}

// PresenceRepository mirrors live device presence for other services.
type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	RefreshPresence(ctx context.Context, userID, connectionID string) error
	DeletePresence(ctx context.Context, userID, connectionID string) error
}

// DisabledNotificationRepository is used when neither the persistence API
// nor a database is configured. Every call fails, so notifications are
// delivered without an id.
type DisabledNotificationRepository struct{}

func (DisabledNotificationRepository) Create(context.Context, *models.NotificationRecord) (string, error) {
	return "", ErrPersistenceDisabled
}
