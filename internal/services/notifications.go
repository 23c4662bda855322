package services

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/prudhvinik1/devicerelay/internal/repositories"
	"github.com/rs/zerolog"
)

const DefaultPersistTimeout = 5 * time.Second

// PersistResult is the outcome of the best-effort persistence call. A zero
// ID means the notification goes out without one.
type PersistResult struct {
	ID  string
	Err error
}

func (r PersistResult) OK() bool { return r.Err == nil && r.ID != "" }

func (r PersistResult) status() string {
	switch {
	case r.OK():
		return "success"
	case errors.Is(r.Err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(r.Err, repositories.ErrPersistenceDisabled):
		return "disabled"
	default:
		return "error"
	}
}

// NotificationService persists a notification through the system of record
// and then delivers it to every live connection of the target user.
type NotificationService struct {
	registry GroupDeliverer
	repo     repositories.NotificationRepository
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewNotificationService(
	reg GroupDeliverer,
	repo repositories.NotificationRepository,
	timeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *NotificationService {
	if repo == nil {
		repo = repositories.DisabledNotificationRepository{}
	}
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}
	return &NotificationService{
		registry: reg,
		repo:     repo,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger.With().Str("component", "notifications").Logger(),
	}
}

// Send builds, persists and fans out a notification. It returns the
// notification as delivered, or nil when the request was dropped for lack
// of a target.
func (s *NotificationService) Send(ctx context.Context, targetUserID string, in models.NotificationInput) (*models.Notification, registry.Delivery) {
	if targetUserID == "" {
		s.logger.Warn().Str("event", models.EventSendNotification).Msg("Dropping notification without targetUserId.")
		s.metrics.EventDropped(models.EventSendNotification, DropMissingTarget)
		return nil, registry.Delivery{}
	}

	n := models.NewNotification(targetUserID, in)

	res := s.persist(ctx, n)
	if res.OK() {
		n.ID = res.ID
	} else {
		s.logger.Error().Err(res.Err).Str("user", targetUserID).Str("type", n.Type).
			Msg("Failed to persist notification, delivering without id.")
	}

	d := fanOut(s.registry, s.metrics, s.logger, targetUserID, models.EventReceiveNotification, n)
	s.logger.Debug().Str("user", targetUserID).Str("id", n.ID).Int("delivered", d.Delivered).Msg("Notification delivered.")
	return n, d
}

// persist runs the repository call under the configured timeout. The wait
// is bounded even if the repository ignores its context.
func (s *NotificationService) persist(ctx context.Context, n *models.Notification) PersistResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := n.Record()
	start := time.Now()
	done := make(chan PersistResult, 1)
	go func() {
		id, err := s.repo.Create(ctx, &record)
		done <- PersistResult{ID: id, Err: err}
	}()

	var res PersistResult
	select {
	case res = <-done:
		if res.Err == nil && res.ID == "" {
			res.Err = repositories.ErrMissingID
		}
	case <-ctx.Done():
		res = PersistResult{Err: ctx.Err()}
	}
	s.metrics.Persisted(res.status(), time.Since(start))
	return res
}
