package models

import (
	"bytes"
	"encoding/json"
)

// DirectMessage is an application-defined message. The relay forwards Raw
// untouched and only reads the few fields it needs to derive a notification.
type DirectMessage struct {
	Raw json.RawMessage

	ID                 FlexString
	SenderID           FlexString
	Content            string
	Text               string
	NotificationTitle  string
	SourceDevice       string
	CreateNotification bool
}

func (m *DirectMessage) UnmarshalJSON(b []byte) error {
	m.Raw = append(m.Raw[:0], b...)
	decodeFields(b, map[string]any{
		"id":                 &m.ID,
		"senderId":           &m.SenderID,
		"content":            &m.Content,
		"text":               &m.Text,
		"notificationTitle":  &m.NotificationTitle,
		"sourceDevice":       &m.SourceDevice,
		"createNotification": &m.CreateNotification,
	})
	return nil
}

func (m DirectMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return []byte("null"), nil
	}
	return m.Raw, nil
}

// Present reports whether the sender supplied a message at all.
func (m DirectMessage) Present() bool {
	return isPresent(m.Raw)
}

// NotificationInput derives the notification that accompanies a message
// sent with createNotification set.
func (m DirectMessage) NotificationInput() NotificationInput {
	body := m.Content
	if body == "" {
		body = m.Text
	}
	return NotificationInput{
		SenderID:      m.SenderID,
		Title:         orDefault(m.NotificationTitle, MessageNotificationTitle),
		Message:       body,
		Type:          MessageNotificationType,
		ReferenceType: MessageReferenceType,
		ReferenceID:   m.ID,
		Severity:      DefaultSeverity,
		SourceDevice:  m.SourceDevice,
	}
}

// SyncPayload is opaque state-sync data relayed verbatim.
type SyncPayload struct {
	Raw json.RawMessage
}

func (s *SyncPayload) UnmarshalJSON(b []byte) error {
	s.Raw = append(s.Raw[:0], b...)
	return nil
}

func (s SyncPayload) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

func (s SyncPayload) Present() bool {
	return isPresent(s.Raw)
}

func isPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
