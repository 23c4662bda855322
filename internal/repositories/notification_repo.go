package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prudhvinik1/devicerelay/internal/models"
)

// rowQuerier is the subset of *pgxpool.Pool the repository needs.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresNotificationRepository writes notification history directly into
// the notifications table, for deployments that share the API's database.
type PostgresNotificationRepository struct {
	pool rowQuerier
}

func NewPostgresNotificationRepository(pool rowQuerier) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, record *models.NotificationRecord) (string, error) {
	query := `INSERT INTO notifications (user_id, sender_id, title, message, type, reference_type,
	                                     reference_id, is_read, severity, icon, source_device)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id::text`

	var id string
	err := r.pool.QueryRow(ctx, query,
		record.UserID,
		nullable(record.SenderID),
		record.Title,
		record.Message,
		record.Type,
		nullable(record.ReferenceType),
		nullable(record.ReferenceID),
		record.IsRead,
		record.Severity,
		nullable(record.Icon),
		record.SourceDevice,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create notification: %w", err)
	}
	if id == "" {
		return "", ErrMissingID
	}
	return id, nil
}

// nullable maps empty optional columns to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
