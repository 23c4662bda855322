package models

import "time"

const (
	DefaultNotificationTitle = "New Notification"
	DefaultNotificationType  = "general"
	DefaultSeverity          = "info"
	DefaultSourceDevice      = "system"

	MessageNotificationTitle = "New Message"
	MessageNotificationType  = "message"
	MessageReferenceType     = "message"
)

// NotificationInput is the notification object carried by send_notification.
// Every field is optional.
type NotificationInput struct {
	SenderID      FlexString
	Title         string
	Message       string
	Type          string
	ReferenceType string
	ReferenceID   FlexString
	Severity      string
	Icon          string
	SourceDevice  string
	IsRead        *bool
}

func (n *NotificationInput) UnmarshalJSON(b []byte) error {
	decodeFields(b, map[string]any{
		"senderId":      &n.SenderID,
		"title":         &n.Title,
		"message":       &n.Message,
		"type":          &n.Type,
		"referenceType": &n.ReferenceType,
		"referenceId":   &n.ReferenceID,
		"severity":      &n.Severity,
		"icon":          &n.Icon,
		"sourceDevice":  &n.SourceDevice,
		"isRead":        &n.IsRead,
	})
	return nil
}

// Notification is what every connection of the target user receives.
// ID is empty when persistence failed.
type Notification struct {
	ID            string    `json:"id,omitempty"`
	TargetUserID  string    `json:"targetUserId"`
	SenderID      string    `json:"senderId,omitempty"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	ReferenceType string    `json:"referenceType,omitempty"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	Severity      string    `json:"severity"`
	Icon          string    `json:"icon,omitempty"`
	SourceDevice  string    `json:"sourceDevice"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewNotification builds a notification for targetUserID, filling in the
// defaults for any field the sender left out.
func NewNotification(targetUserID string, in NotificationInput) *Notification {
	n := &Notification{
		TargetUserID:  targetUserID,
		SenderID:      in.SenderID.String(),
		Title:         orDefault(in.Title, DefaultNotificationTitle),
		Message:       in.Message,
		Type:          orDefault(in.Type, DefaultNotificationType),
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID.String(),
		Severity:      orDefault(in.Severity, DefaultSeverity),
		Icon:          in.Icon,
		SourceDevice:  orDefault(in.SourceDevice, DefaultSourceDevice),
		CreatedAt:     time.Now().UTC(),
	}
	if in.IsRead != nil {
		n.IsRead = *in.IsRead
	}
	return n
}

// NotificationRecord is the body of the persistence API's create call.
type NotificationRecord struct {
	UserID        string `json:"userId"`
	SenderID      string `json:"senderId,omitempty"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	Type          string `json:"type"`
	ReferenceType string `json:"referenceType,omitempty"`
	ReferenceID   string `json:"referenceId,omitempty"`
	IsRead        bool   `json:"isRead"`
	Severity      string `json:"severity"`
	Icon          string `json:"icon,omitempty"`
	SourceDevice  string `json:"sourceDevice"`
}

// Record returns the persistence form of the notification.
func (n *Notification) Record() NotificationRecord {
	return NotificationRecord{
		UserID:        n.TargetUserID,
		SenderID:      n.SenderID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          n.Type,
		ReferenceType: n.ReferenceType,
		ReferenceID:   n.ReferenceID,
		IsRead:        n.IsRead,
		Severity:      n.Severity,
		Icon:          n.Icon,
		SourceDevice:  n.SourceDevice,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
