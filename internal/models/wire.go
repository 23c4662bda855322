package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Inbound event names.
const (
	EventRegister         = "register"
	EventSendNotification = "send_notification"
	EventSendMessage      = "send_message"
	EventSyncData         = "sync_data"
)

// Outbound event names.
const (
	EventUserConnected       = "user_connected"
	EventUserDisconnected    = "user_disconnected"
	EventReceiveNotification = "receive_notification"
	EventReceiveMessage      = "receive_message"
	EventDataSync            = "data_sync"
)

// Frame is the envelope used in both directions on the relay socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals an outbound frame once so it can be shared by every
// member of a user group.
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// FlexString accepts a JSON string or number. Clients send user and entity
// ids in either form depending on where they came from.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
		return nil
	}
	return fmt.Errorf("expected string or number, got %s", strconv.Quote(string(b)))
}

func (f FlexString) String() string { return string(f) }

// decodeFields decodes each field of a JSON object independently. A field
// with the wrong shape is left at its zero value instead of failing the
// whole payload; a payload that is not an object yields no fields at all.
func decodeFields(raw []byte, fields map[string]any) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return
	}
	for key, dst := range fields {
		v, ok := obj[key]
		if !ok {
			continue
		}
		_ = json.Unmarshal(v, dst) //nolint:errcheck
	}
}

// RegisterPayload is the data of a register event.
type RegisterPayload struct {
	UserID     FlexString
	DeviceType string
}

func (p *RegisterPayload) UnmarshalJSON(b []byte) error {
	decodeFields(b, map[string]any{
		"userId":     &p.UserID,
		"deviceType": &p.DeviceType,
	})
	return nil
}

// SendNotificationPayload is the data of a send_notification event.
type SendNotificationPayload struct {
	TargetUserID FlexString
	Notification NotificationInput
}

func (p *SendNotificationPayload) UnmarshalJSON(b []byte) error {
	decodeFields(b, map[string]any{
		"targetUserId": &p.TargetUserID,
		"notification": &p.Notification,
	})
	return nil
}

// SendMessagePayload is the data of a send_message event.
type SendMessagePayload struct {
	TargetUserID FlexString
	Message      DirectMessage
}

func (p *SendMessagePayload) UnmarshalJSON(b []byte) error {
	decodeFields(b, map[string]any{
		"targetUserId": &p.TargetUserID,
		"message":      &p.Message,
	})
	return nil
}

// SyncDataPayload is the data of a sync_data event.
type SyncDataPayload struct {
	TargetUserID FlexString
	SyncData     SyncPayload
}

func (p *SyncDataPayload) UnmarshalJSON(b []byte) error {
	decodeFields(b, map[string]any{
		"targetUserId": &p.TargetUserID,
		"syncData":     &p.SyncData,
	})
	return nil
}
