package groups

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/bazario/pushgate/logger"
)

const channelPrefix = "grp:"

// RedisBus broadcasts group events over one pub/sub channel per group key.
// Every gateway worker subscribes only to the groups it has local members
// for, so fan-out crosses processes without a routing table.
type RedisBus struct {
	rdb *redis.Client
	ps  *redis.PubSub
}

func NewRedisBus(rdb *redis.Client) *RedisBus {
	// Subscribe with no channels yet; Join adds them as members arrive.
	return &RedisBus{rdb: rdb, ps: rdb.Subscribe(context.Background())}
}

func (b *RedisBus) Publish(ctx context.Context, group string, payload []byte) error {
	return b.rdb.Publish(ctx, channelPrefix+group, payload).Err()
}

func (b *RedisBus) Subscribe(group string) error {
	return b.ps.Subscribe(context.Background(), channelPrefix+group)
}

func (b *RedisBus) Unsubscribe(group string) error {
	return b.ps.Unsubscribe(context.Background(), channelPrefix+group)
}

func (b *RedisBus) Run(deliver func(group string, payload []byte)) {
	for msg := range b.ps.Channel() {
		group := strings.TrimPrefix(msg.Channel, channelPrefix)
		deliver(group, []byte(msg.Payload))
	}
	logger.Debug("redis bus receive loop stopped")
}

func (b *RedisBus) Close() error {
	return b.ps.Close()
}
