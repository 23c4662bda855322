package services

import (
	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/rs/zerolog"
)

// GroupDeliverer is the registry's fan-out primitive.
type GroupDeliverer interface {
	Deliver(userID string, frame []byte, exclude ...string) registry.Delivery
}

// Drop reasons reported to metrics and logs.
const (
	DropMissingTarget  = "missing_target"
	DropMissingUser    = "missing_user"
	DropMissingPayload = "missing_payload"
	DropMalformed      = "malformed"
	DropUnknownEvent   = "unknown_event"
	DropUnknownConn    = "unknown_connection"
)

// fanOut encodes payload once and hands it to every member of userID's
// group except exclude.
func fanOut(reg GroupDeliverer, metrics *observability.Metrics, logger zerolog.Logger,
	userID, event string, payload any, exclude ...string) registry.Delivery {
	frame, err := models.EncodeFrame(event, payload)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Str("user", userID).Msg("Failed to encode outbound frame.")
		return registry.Delivery{}
	}
	d := reg.Deliver(userID, frame, exclude...)
	metrics.Delivered(event, d.Delivered, d.Dropped)
	return d
}
