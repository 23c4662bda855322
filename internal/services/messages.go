package services

import (
	"context"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/rs/zerolog"
)

// Notifier is the notification fan-out path a message can trigger.
type Notifier interface {
	Send(ctx context.Context, targetUserID string, in models.NotificationInput) (*models.Notification, registry.Delivery)
}

// MessageService relays direct messages and sync payloads to every
// connection of the target user.
type MessageService struct {
	registry GroupDeliverer
	notifier Notifier
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewMessageService(reg GroupDeliverer, notifier Notifier, metrics *observability.Metrics, logger zerolog.Logger) *MessageService {
	return &MessageService{
		registry: reg,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With().Str("component", "messages").Logger(),
	}
}

// SendMessage delivers msg verbatim. When the sender asked for it, a
// notification is then derived and sent through the full notification path;
// its outcome never affects the message delivery that already happened.
func (s *MessageService) SendMessage(ctx context.Context, targetUserID string, msg models.DirectMessage) registry.Delivery {
	if !s.accept(models.EventSendMessage, targetUserID, msg.Present()) {
		return registry.Delivery{}
	}

	d := fanOut(s.registry, s.metrics, s.logger, targetUserID, models.EventReceiveMessage, msg)

	if msg.CreateNotification && s.notifier != nil {
		s.notifier.Send(ctx, targetUserID, msg.NotificationInput())
	}
	return d
}

// SyncData delivers payload verbatim. Nothing is persisted.
func (s *MessageService) SyncData(targetUserID string, payload models.SyncPayload) registry.Delivery {
	if !s.accept(models.EventSyncData, targetUserID, payload.Present()) {
		return registry.Delivery{}
	}
	return fanOut(s.registry, s.metrics, s.logger, targetUserID, models.EventDataSync, payload)
}

func (s *MessageService) accept(event, targetUserID string, hasPayload bool) bool {
	reason := ""
	switch {
	case targetUserID == "":
		reason = DropMissingTarget
	case !hasPayload:
		reason = DropMissingPayload
	default:
		return true
	}
	s.logger.Warn().Str("event", event).Str("user", targetUserID).Str("reason", reason).Msg("Dropping event.")
	s.metrics.EventDropped(event, reason)
	return false
}
