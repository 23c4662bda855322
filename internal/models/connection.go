package models

import "time"

// ConnectionState is the lifecycle stage of a transport session.
type ConnectionState string

const (
	StateAnonymous  ConnectionState = "anonymous"
	StateRegistered ConnectionState = "registered"
	StateGone       ConnectionState = "gone"
)

// Membership is the (user, device) pair a connection registered with.
type Membership struct {
	UserID     string     `json:"user_id"`
	DeviceType DeviceType `json:"device_type"`
}

// Connection is a snapshot of one live session as seen by the registry.
type Connection struct {
	ID          string          `json:"id"`
	State       ConnectionState `json:"state"`
	Membership  *Membership     `json:"membership,omitempty"`
	ConnectedAt time.Time       `json:"connected_at"`
}
