package services

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type received struct {
	Event string
	Data  json.RawMessage
}

type recordingSink struct {
	mu     sync.Mutex
	frames []received
}

func (s *recordingSink) Enqueue(frame []byte) bool {
	var f models.Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, received{Event: f.Event, Data: f.Data})
	return true
}

func (s *recordingSink) events(name string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []json.RawMessage
	for _, f := range s.frames {
		if f.Event == name {
			out = append(out, f.Data)
		}
	}
	return out
}

// without returns every frame except those named in skip, in arrival order.
func (s *recordingSink) without(skip ...string) []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []received
	for _, f := range s.frames {
		if !slices.Contains(skip, f.Event) {
			out = append(out, f)
		}
	}
	return out
}

func (s *recordingSink) all() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.frames...)
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, record *models.NotificationRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

type mockPresenceRepo struct {
	mock.Mock
}

func (m *mockPresenceRepo) SetPresence(ctx context.Context, presence *models.Presence) error {
	return m.Called(ctx, presence).Error(0)
}

func (m *mockPresenceRepo) RefreshPresence(ctx context.Context, userID, connectionID string) error {
	return m.Called(ctx, userID, connectionID).Error(0)
}

func (m *mockPresenceRepo) DeletePresence(ctx context.Context, userID, connectionID string) error {
	return m.Called(ctx, userID, connectionID).Error(0)
}

// --- Fixture ---

type fixture struct {
	registry      *registry.Registry
	repo          *mockNotificationRepo
	presence      *PresenceService
	notifications *NotificationService
	messages      *MessageService
	dispatcher    *Dispatcher
	sinks         map[string]*recordingSink
}

func newFixture(t *testing.T, presenceStore *mockPresenceRepo) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	reg := registry.New(logger)
	repo := new(mockNotificationRepo)

	// keep the interface nil when no mirror is wanted
	presence := NewPresenceService(reg, nil, nil, logger)
	if presenceStore != nil {
		presence = NewPresenceService(reg, presenceStore, nil, logger)
	}
	notifications := NewNotificationService(reg, repo, 200*time.Millisecond, nil, logger)
	messages := NewMessageService(reg, notifications, nil, logger)

	return &fixture{
		registry:      reg,
		repo:          repo,
		presence:      presence,
		notifications: notifications,
		messages:      messages,
		dispatcher:    NewDispatcher(reg, presence, notifications, messages, nil, logger),
		sinks:         make(map[string]*recordingSink),
	}
}

// connect attaches connID and returns its sink.
func (fx *fixture) connect(t *testing.T, connID string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	require.NoError(t, fx.dispatcher.Connect(connID, sink))
	fx.sinks[connID] = sink
	return sink
}

// register connects and registers connID under userID.
func (fx *fixture) register(t *testing.T, connID, userID string, device models.DeviceType) *recordingSink {
	t.Helper()
	sink := fx.connect(t, connID)
	require.NoError(t, fx.presence.Register(context.Background(), connID, userID, device))
	return sink
}

func decodeNotification(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}
