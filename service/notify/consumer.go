package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/tools/decode"
)

// Subjects the marketplace publishes its domain events on.
const (
	SubjectMessageCreated = "events.message.created"
	SubjectFavoriteAdded  = "events.favorite.added"
	SubjectListingCreated = "events.listing.created"

	queueGroup = "notify-workers"
	ackWait    = 30 * time.Second
)

// Consumer bridges the NATS domain-event bus onto the Publisher. All worker
// processes share one queue group, so each event is handled exactly once
// across the fleet.
type Consumer struct {
	nc   *nats.Conn
	pub  *Publisher
	subs []*nats.Subscription
}

func NewConsumer(url, name string, pub *Publisher) (*Consumer, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	return &Consumer{nc: nc, pub: pub}, nil
}

func (c *Consumer) Start() error {
	js, err := c.nc.JetStream()
	if err != nil {
		return errors.Wrap(err, "jetstream context")
	}

	type route struct {
		subject string
		durable string
		handle  func(context.Context, map[string]any) error
	}
	routes := []route{
		{SubjectMessageCreated, "notify-message-dur", c.onMessageCreated},
		{SubjectFavoriteAdded, "notify-favorite-dur", c.onFavoriteAdded},
		{SubjectListingCreated, "notify-listing-dur", c.onListingCreated},
	}

	for _, r := range routes {
		r := r
		sub, err := js.QueueSubscribe(r.subject, queueGroup, func(m *nats.Msg) {
			c.dispatch(m, r.handle)
		}, nats.Durable(r.durable), nats.ManualAck(), nats.AckWait(ackWait), nats.MaxAckPending(4096))
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", r.subject)
		}
		c.subs = append(c.subs, sub)
	}
	logger.Infof("[notify] consuming %d event subjects", len(routes))
	return nil
}

// dispatch acks regardless of handler outcome: live push is best-effort and
// a poison event must not wedge the queue. Failures are logged with the raw
// subject for follow-up.
func (c *Consumer) dispatch(m *nats.Msg, handle func(context.Context, map[string]any) error) {
	var raw map[string]any
	if err := json.Unmarshal(m.Data, &raw); err != nil {
		logger.Errorf("[notify] bad event payload on %s: %v", m.Subject, err)
		_ = m.Ack()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ackWait)
	defer cancel()
	if err := handle(ctx, raw); err != nil {
		logger.Errorf("[notify] handle %s: %v", m.Subject, err)
	}
	_ = m.Ack()
}

func (c *Consumer) onMessageCreated(ctx context.Context, raw map[string]any) error {
	ev, err := decode.Map[MessageCreatedEvent](raw)
	if err != nil {
		return err
	}
	return c.pub.HandleMessageCreated(ctx, ev)
}

func (c *Consumer) onFavoriteAdded(ctx context.Context, raw map[string]any) error {
	ev, err := decode.Map[FavoriteAddedEvent](raw)
	if err != nil {
		return err
	}
	return c.pub.HandleFavoriteAdded(ctx, ev)
}

func (c *Consumer) onListingCreated(ctx context.Context, raw map[string]any) error {
	ev, err := decode.Map[ListingCreatedEvent](raw)
	if err != nil {
		return err
	}
	return c.pub.HandleListingCreated(ctx, ev)
}

// Close drains subscriptions so in-flight events finish before shutdown.
func (c *Consumer) Close() error {
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	return c.nc.Drain()
}
