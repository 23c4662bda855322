// Package registry tracks live relay connections and the user group each
// one belongs to.
package registry

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrMissingUserID       = errors.New("registration requires a user id")
	ErrUnknownConnection   = errors.New("connection is not attached")
	ErrMissingConnectionID = errors.New("connection id is required")
)

// Sink is the outbound side of one connection. Enqueue must not block: it
// either accepts the frame into the connection's buffer or reports false.
type Sink interface {
	Enqueue(frame []byte) bool
}

type entry struct {
	sink        Sink
	membership  *models.Membership
	connectedAt time.Time
}

// Registry maps connection ids to their membership and keeps a reverse
// index from user id to connection ids. Both maps change under one lock so
// readers never observe a half-applied register or unregister.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	groups map[string]map[string]struct{}
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*entry),
		groups: make(map[string]map[string]struct{}),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Attach records a freshly established, still anonymous connection.
func (r *Registry) Attach(connID string, sink Sink) error {
	if connID == "" {
		return ErrMissingConnectionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = &entry{sink: sink, connectedAt: time.Now().UTC()}
	return nil
}

// Register associates connID with (userID, deviceType). Calling it again
// moves the connection to the new group instead of duplicating it. The
// previous membership, if any, is returned so callers can tell the old
// group the device left.
func (r *Registry) Register(connID, userID string, deviceType models.DeviceType) (*models.Membership, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil, ErrUnknownConnection
	}
	prev := e.membership
	if prev != nil {
		r.leave(prev.UserID, connID)
	}
	e.membership = &models.Membership{UserID: userID, DeviceType: deviceType}
	group, ok := r.groups[userID]
	if !ok {
		group = make(map[string]struct{})
		r.groups[userID] = group
	}
	group[connID] = struct{}{}

	r.logger.Debug().Str("connection", connID).Str("user", userID).
		Str("device", string(deviceType)).Int("group_size", len(group)).Msg("Connection registered.")
	return prev, nil
}

// Unregister removes the connection entirely. It returns the membership the
// connection had, or nil if it never registered or was already gone.
func (r *Registry) Unregister(connID string) *models.Membership {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)
	if e.membership != nil {
		r.leave(e.membership.UserID, connID)
	}
	return e.membership
}

// leave must be called with mu held.
func (r *Registry) leave(userID, connID string) {
	group, ok := r.groups[userID]
	if !ok {
		return
	}
	delete(group, connID)
	if len(group) == 0 {
		delete(r.groups, userID)
	}
}

// MembersOf returns the ids of every live connection registered under userID.
func (r *Registry) MembersOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[userID]
	members := make([]string, 0, len(group))
	for id := range group {
		members = append(members, id)
	}
	return members
}

// DeviceTypeOf returns the device type a connection registered with.
func (r *Registry) DeviceTypeOf(connID string) (models.DeviceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok || e.membership == nil {
		return "", false
	}
	return e.membership.DeviceType, true
}

// MembershipOf returns the membership of a registered connection.
func (r *Registry) MembershipOf(connID string) (models.Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok || e.membership == nil {
		return models.Membership{}, false
	}
	return *e.membership, true
}

// Connection returns a snapshot of connID.
func (r *Registry) Connection(connID string) (models.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return models.Connection{ID: connID, State: models.StateGone}, false
	}
	c := models.Connection{ID: connID, State: models.StateAnonymous, ConnectedAt: e.connectedAt}
	if e.membership != nil {
		m := *e.membership
		c.State = models.StateRegistered
		c.Membership = &m
	}
	return c, true
}

// Delivery summarises one group delivery.
type Delivery struct {
	Delivered int
	Dropped   int
}

// Deliver enqueues frame on every connection of userID except those listed
// in exclude. Sinks are written while the read lock is held, so a
// connection being unregistered is either fully visible or not at all.
func (r *Registry) Deliver(userID string, frame []byte, exclude ...string) Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var d Delivery
	for id := range r.groups[userID] {
		if slices.Contains(exclude, id) {
			continue
		}
		e := r.conns[id]
		if e == nil || e.sink == nil {
			continue
		}
		if e.sink.Enqueue(frame) {
			d.Delivered++
		} else {
			d.Dropped++
			r.logger.Warn().Str("connection", id).Str("user", userID).Msg("Outbound buffer full, frame dropped.")
		}
	}
	return d
}

// Count returns the number of live connections, registered or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Users returns the number of users with at least one live connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
