package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/rs/zerolog"
)

// Dispatcher routes inbound events from one connection to the component
// that handles them. Every event is fire-and-forget: nothing is ever sent
// back to the originating connection as a reply.
type Dispatcher struct {
	registry      *registry.Registry
	presence      *PresenceService
	notifications *NotificationService
	messages      *MessageService
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

func NewDispatcher(
	reg *registry.Registry,
	presence *PresenceService,
	notifications *NotificationService,
	messages *MessageService,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:      reg,
		presence:      presence,
		notifications: notifications,
		messages:      messages,
		metrics:       metrics,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Connect attaches a new anonymous connection.
func (d *Dispatcher) Connect(connID string, sink registry.Sink) error {
	if err := d.registry.Attach(connID, sink); err != nil {
		return err
	}
	d.metrics.ConnectionOpened()
	return nil
}

// Disconnect is called exactly once when the transport session ends.
func (d *Dispatcher) Disconnect(ctx context.Context, connID string) {
	d.presence.Unregister(ctx, connID)
	d.metrics.ConnectionClosed()
}

// Heartbeat records liveness for connID.
func (d *Dispatcher) Heartbeat(ctx context.Context, connID string) {
	d.presence.Heartbeat(ctx, connID)
}

// Live reports the number of live connections and distinct users.
func (d *Dispatcher) Live() (connections, users int) {
	return d.registry.Count(), d.registry.Users()
}

// Handle decodes and dispatches one inbound frame.
func (d *Dispatcher) Handle(ctx context.Context, connID string, raw []byte) {
	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		d.logger.Warn().Str("connection", connID).Msg("Dropping malformed frame.")
		d.metrics.EventDropped("", DropMalformed)
		return
	}
	log := d.logger.With().Str("connection", connID).Str("event", frame.Event).Logger()

	switch frame.Event {
	case models.EventRegister, models.EventSendNotification, models.EventSendMessage, models.EventSyncData:
		d.metrics.EventReceived(frame.Event)
	default:
		// client-chosen names never become metric labels
		log.Debug().Msg("Ignoring unknown event.")
		d.metrics.EventDropped("other", DropUnknownEvent)
		return
	}

	switch frame.Event {
	case models.EventRegister:
		var p models.RegisterPayload
		_ = json.Unmarshal(frame.Data, &p) //nolint:errcheck
		err := d.presence.Register(ctx, connID, p.UserID.String(), models.ParseDeviceType(p.DeviceType))
		switch {
		case errors.Is(err, registry.ErrMissingUserID):
			log.Warn().Msg("Ignoring register without userId; connection stays anonymous.")
			d.metrics.EventDropped(frame.Event, DropMissingUser)
		case errors.Is(err, registry.ErrUnknownConnection):
			log.Warn().Msg("Ignoring register for a connection that is not attached.")
			d.metrics.EventDropped(frame.Event, DropUnknownConn)
		case err != nil:
			log.Error().Err(err).Msg("Register failed.")
		}

	case models.EventSendNotification:
		var p models.SendNotificationPayload
		_ = json.Unmarshal(frame.Data, &p) //nolint:errcheck
		d.notifications.Send(ctx, p.TargetUserID.String(), p.Notification)

	case models.EventSendMessage:
		var p models.SendMessagePayload
		_ = json.Unmarshal(frame.Data, &p) //nolint:errcheck
		d.messages.SendMessage(ctx, p.TargetUserID.String(), p.Message)

	case models.EventSyncData:
		var p models.SyncDataPayload
		_ = json.Unmarshal(frame.Data, &p) //nolint:errcheck
		d.messages.SyncData(p.TargetUserID.String(), p.SyncData)
	}
}
