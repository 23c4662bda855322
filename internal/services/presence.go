package services

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/observability"
	"github.com/prudhvinik1/devicerelay/internal/repositories"
	"github.com/rs/zerolog"
)

const presenceStoreTimeout = 2 * time.Second

// ConnectionRegistry is what the presence notifier needs from the registry.
type ConnectionRegistry interface {
	GroupDeliverer
	Register(connID, userID string, deviceType models.DeviceType) (*models.Membership, error)
	Unregister(connID string) *models.Membership
	MembershipOf(connID string) (models.Membership, bool)
}

// PresenceService owns register/unregister and tells a user's other devices
// when a sibling comes online or goes away. If a PresenceRepository is set,
// presence is mirrored there on a best-effort basis.
type PresenceService struct {
	registry ConnectionRegistry
	store    repositories.PresenceRepository
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewPresenceService builds the notifier. store may be nil.
func NewPresenceService(reg ConnectionRegistry, store repositories.PresenceRepository, metrics *observability.Metrics, logger zerolog.Logger) *PresenceService {
	return &PresenceService{
		registry: reg,
		store:    store,
		metrics:  metrics,
		logger:   logger.With().Str("component", "presence").Logger(),
	}
}

// Register moves connID into userID's group and announces it to every
// other member. The registering connection never hears about itself. If
// the connection was previously registered under another user, that
// group is told the device left.
func (s *PresenceService) Register(ctx context.Context, connID, userID string, deviceType models.DeviceType) error {
	prev, err := s.registry.Register(connID, userID, deviceType)
	if err != nil {
		return err
	}

	if prev != nil && prev.UserID != userID {
		fanOut(s.registry, s.metrics, s.logger, prev.UserID, models.EventUserDisconnected,
			models.PresenceEvent{DeviceType: prev.DeviceType}, connID)
		s.unmirror(ctx, prev.UserID, connID)
	}

	d := fanOut(s.registry, s.metrics, s.logger, userID, models.EventUserConnected,
		models.PresenceEvent{DeviceType: deviceType}, connID)

	s.logger.Info().Str("connection", connID).Str("user", userID).Str("device", string(deviceType)).
		Int("siblings", d.Delivered+d.Dropped).Msg("Device registered.")

	s.mirror(ctx, connID, userID, deviceType)
	return nil
}

// Unregister removes connID and, if it had registered, announces the
// departure to the devices that remain.
func (s *PresenceService) Unregister(ctx context.Context, connID string) {
	m := s.registry.Unregister(connID)
	if m == nil {
		s.logger.Debug().Str("connection", connID).Msg("Anonymous connection closed.")
		return
	}

	fanOut(s.registry, s.metrics, s.logger, m.UserID, models.EventUserDisconnected,
		models.PresenceEvent{DeviceType: m.DeviceType}, connID)
	s.logger.Info().Str("connection", connID).Str("user", m.UserID).Str("device", string(m.DeviceType)).Msg("Device disconnected.")

	s.unmirror(ctx, m.UserID, connID)
}

// Heartbeat keeps the mirrored presence of a registered connection alive.
func (s *PresenceService) Heartbeat(ctx context.Context, connID string) {
	if s.store == nil {
		return
	}
	m, ok := s.registry.MembershipOf(connID)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceStoreTimeout)
	defer cancel()

	err := s.store.RefreshPresence(ctx, m.UserID, connID)
	if errors.Is(err, repositories.ErrNotFound) {
		s.mirror(ctx, connID, m.UserID, m.DeviceType)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("connection", connID).Msg("Failed to refresh presence.")
	}
}

func (s *PresenceService) mirror(ctx context.Context, connID, userID string, deviceType models.DeviceType) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceStoreTimeout)
	defer cancel()

	p := &models.Presence{
		ConnectionID: connID,
		UserID:       userID,
		DeviceType:   deviceType,
		Status:       string(models.StatusOnline),
	}
	if err := s.store.SetPresence(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("connection", connID).Str("user", userID).Msg("Failed to mirror presence.")
	}
}

func (s *PresenceService) unmirror(ctx context.Context, userID, connID string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceStoreTimeout)
	defer cancel()

	if err := s.store.DeletePresence(ctx, userID, connID); err != nil {
		s.logger.Warn().Err(err).Str("connection", connID).Str("user", userID).Msg("Failed to clear mirrored presence.")
	}
}
