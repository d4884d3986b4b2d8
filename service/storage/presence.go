package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence tracks which gateway node currently serves a user. The REST side
// reads these keys for online badges; the TTL is refreshed on every pong so a
// dead socket expires on its own.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Presence{rdb: rdb, ttl: ttl}
}

// presence key: im:presence:<user>, value: gateway_id
func presenceKey(user string) string { return "im:presence:" + user }

// Online marks the user online on gatewayID and starts the TTL.
func (p *Presence) Online(ctx context.Context, user, gatewayID string) error {
	return errors.Wrap(p.rdb.Set(ctx, presenceKey(user), gatewayID, p.ttl).Err(), "presence online")
}

// Touch renews the TTL without changing the value.
func (p *Presence) Touch(ctx context.Context, user string) error {
	return errors.Wrap(p.rdb.Expire(ctx, presenceKey(user), p.ttl).Err(), "presence touch")
}

// Offline deletes the key.
func (p *Presence) Offline(ctx context.Context, user string) error {
	return errors.Wrap(p.rdb.Del(ctx, presenceKey(user)).Err(), "presence offline")
}

// Lookup reports whether the user is online and on which gateway.
func (p *Presence) Lookup(ctx context.Context, user string) (gatewayID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "presence lookup")
	}
	return val, true, nil
}
