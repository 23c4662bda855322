package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/devicerelay/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix  = "presence:"
	userPresencePrefix = "user:%s:presence"
	DefaultPresenceTTL = 60 * time.Second
)

// redisClient is the subset of *redis.Client the presence mirror uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisPresenceRepository keeps one TTL key per connection plus a set of
// connection ids per user, so other services can see which devices are
// online without talking to the relay.
type RedisPresenceRepository struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisPresenceRepository(client redisClient, ttl time.Duration) *RedisPresenceRepository {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisPresenceRepository{client: client, ttl: ttl}
}

// SetPresence writes the connection's presence and indexes it under its user.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	presence.LastSeen = time.Now().UTC()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := r.client.Set(ctx, presenceKey(presence.ConnectionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}

	userKey := userPresenceKey(presence.UserID)
	if err := r.client.SAdd(ctx, userKey, presence.ConnectionID).Err(); err != nil {
		return fmt.Errorf("failed to index presence: %w", err)
	}
	if err := r.client.Expire(ctx, userKey, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence index ttl: %w", err)
	}
	return nil
}

// RefreshPresence extends the TTLs. It returns ErrNotFound when the key has
// already expired so the caller can write it again.
func (r *RedisPresenceRepository) RefreshPresence(ctx context.Context, userID, connectionID string) error {
	ok, err := r.client.Expire(ctx, presenceKey(connectionID), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if err := r.client.Expire(ctx, userPresenceKey(userID), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh presence index: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, userID, connectionID string) error {
	if err := r.client.SRem(ctx, userPresenceKey(userID), connectionID).Err(); err != nil {
		return fmt.Errorf("failed to remove presence from index: %w", err)
	}
	if err := r.client.Del(ctx, presenceKey(connectionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

func presenceKey(connectionID string) string {
	return presenceKeyPrefix + connectionID
}

func userPresenceKey(userID string) string {
	return fmt.Sprintf(userPresencePrefix, userID)
}
