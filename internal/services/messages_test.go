package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/prudhvinik1/devicerelay/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func directMessage(t *testing.T, raw string) models.DirectMessage {
	t.Helper()
	var m models.DirectMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func syncPayload(t *testing.T, raw string) models.SyncPayload {
	t.Helper()
	var p models.SyncPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestMessageService_SendMessageVerbatim(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)
	c2 := fx.register(t, "c2", "u1", models.DeviceWeb)

	raw := `{"id": 12, "senderId": "u2", "content": "lunch?", "attachments": [{"name": "menu.pdf"}]}`
	d := fx.messages.SendMessage(context.Background(), "u1", directMessage(t, raw))

	assert.Equal(t, registry.Delivery{Delivered: 2}, d)
	for _, sink := range []*recordingSink{c1, c2} {
		got := sink.events(models.EventReceiveMessage)
		require.Len(t, got, 1)
		assert.JSONEq(t, raw, string(got[0]))
		assert.Empty(t, sink.events(models.EventReceiveNotification))
	}
	fx.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_SendMessageWithNotification(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)
	c2 := fx.register(t, "c2", "u1", models.DeviceMobile)

	fx.repo.On("Create", mock.Anything, mock.MatchedBy(func(r *models.NotificationRecord) bool {
		return r.UserID == "u1" &&
			r.Title == models.MessageNotificationTitle &&
			r.Type == models.MessageNotificationType &&
			r.ReferenceType == models.MessageReferenceType &&
			r.ReferenceID == "12" &&
			r.Severity == models.DefaultSeverity &&
			r.Message == "lunch?" &&
			r.SenderID == "u2"
	})).Return("n-9", nil).Once()

	raw := `{"id": 12, "senderId": "u2", "content": "lunch?", "createNotification": true}`
	fx.messages.SendMessage(context.Background(), "u1", directMessage(t, raw))

	for _, sink := range []*recordingSink{c1, c2} {
		frames := sink.without(models.EventUserConnected)
		require.Len(t, frames, 2)
		assert.Equal(t, models.EventReceiveMessage, frames[0].Event)
		assert.Equal(t, models.EventReceiveNotification, frames[1].Event)
		assert.JSONEq(t, raw, string(frames[0].Data))
		assert.Equal(t, "n-9", decodeNotification(t, frames[1].Data)["id"])
	}
	fx.repo.AssertExpectations(t)
}

func TestMessageService_NotificationFailureKeepsMessage(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)

	fx.repo.On("Create", mock.Anything, mock.Anything).Return("", errors.New("down")).Once()

	raw := `{"id": "m-1", "text": "ping", "createNotification": true, "notificationTitle": "Ping from Ana"}`
	fx.messages.SendMessage(context.Background(), "u1", directMessage(t, raw))

	require.Len(t, c1.events(models.EventReceiveMessage), 1)
	notes := c1.events(models.EventReceiveNotification)
	require.Len(t, notes, 1)
	payload := decodeNotification(t, notes[0])
	assert.NotContains(t, payload, "id")
	assert.Equal(t, "Ping from Ana", payload["title"])
	assert.Equal(t, "ping", payload["message"])
	assert.Equal(t, "m-1", payload["referenceId"])
}

func TestMessageService_CreateNotificationFalse(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)

	fx.messages.SendMessage(context.Background(), "u1", directMessage(t, `{"content": "x", "createNotification": false}`))
	fx.messages.SendMessage(context.Background(), "u1", directMessage(t, `{"content": "y", "createNotification": "yes"}`))

	assert.Len(t, c1.events(models.EventReceiveMessage), 2)
	assert.Empty(t, c1.events(models.EventReceiveNotification))
	fx.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_Drops(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)

	d := fx.messages.SendMessage(context.Background(), "", directMessage(t, `{"content": "x", "createNotification": true}`))
	assert.Equal(t, registry.Delivery{}, d)
	d = fx.messages.SendMessage(context.Background(), "u1", models.DirectMessage{})
	assert.Equal(t, registry.Delivery{}, d)
	d = fx.messages.SyncData("", syncPayload(t, `{"theme": "dark"}`))
	assert.Equal(t, registry.Delivery{}, d)
	d = fx.messages.SyncData("u1", syncPayload(t, `null`))
	assert.Equal(t, registry.Delivery{}, d)

	assert.Empty(t, c1.all())
	fx.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMessageService_SyncDataFanOut(t *testing.T) {
	fx := newFixture(t, nil)
	c1 := fx.register(t, "c1", "u1", models.DeviceDesktop)
	c2 := fx.register(t, "c2", "u1", models.DeviceMobile)

	raw := `{"kind": "settings", "values": {"theme": "dark"}, "createNotification": true}`
	d := fx.messages.SyncData("u1", syncPayload(t, raw))

	assert.Equal(t, 2, d.Delivered)
	for _, sink := range []*recordingSink{c1, c2} {
		got := sink.events(models.EventDataSync)
		require.Len(t, got, 1)
		assert.JSONEq(t, raw, string(got[0]))
	}
}

func TestMessageService_SyncDataNeverPersists(t *testing.T) {
	fx := newFixture(t, nil)
	fx.register(t, "c1", "u1", models.DeviceDesktop)

	inputs := []string{
		`{"a": 1}`,
		`"plain string"`,
		`[1, 2, 3]`,
		`{"createNotification": true, "id": 5}`,
		`null`,
	}
	for _, raw := range inputs {
		fx.messages.SyncData("u1", syncPayload(t, raw))
		fx.messages.SyncData("", syncPayload(t, raw))
		fx.messages.SyncData("nobody", syncPayload(t, raw))
	}
	fx.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
