package models

import (
	"time"
)

type Presence struct {
	ConnectionID string     `json:"connection_id"`
	UserID       string     `json:"user_id"`
	DeviceType   DeviceType `json:"device_type"`
	Status       string     `json:"status"`
	LastSeen     time.Time  `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// PresenceEvent is the payload sibling devices receive on connect/disconnect.
type PresenceEvent struct {
	DeviceType DeviceType `json:"deviceType"`
}
