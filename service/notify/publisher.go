// Package notify turns domain events into durable notifications and pushes
// them to any live sockets of the recipient. Push is best-effort by design:
// the record always lands first and can be pulled later over REST.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/service/groups"
)

// Notification types, mirroring the marketplace domain.
const (
	TypeMessage      = "message"
	TypeFavorite     = "favorite"
	TypeSubscription = "subscription"
)

type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Sender    string    `json:"sender"`
	Type      string    `json:"notification_type"`
	Content   string    `json:"content"`
	ObjectID  string    `json:"object_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the durable side, owned by the data layer.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipient string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipient string) error
	MarkAllRead(ctx context.Context, recipient string) error
}

type Publisher struct {
	store    Store
	registry *groups.Registry
	timeout  time.Duration
}

func NewPublisher(store Store, registry *groups.Registry, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{store: store, registry: registry, timeout: timeout}
}

// Publish creates the Notification record, then pushes it to the recipient's
// notification group. A push failure is logged and swallowed — it must never
// fail the domain operation that triggered it.
func (p *Publisher) Publish(ctx context.Context, recipient, sender, typ, content, objectID string) (*Notification, error) {
	n := &Notification{
		Recipient: recipient,
		Sender:    sender,
		Type:      typ,
		Content:   content,
		ObjectID:  objectID,
		CreatedAt: time.Now().UTC(),
	}
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.store.Create(cctx, n)
	cancel()
	if err != nil {
		return nil, err
	}

	payload := buildEvent(n)
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.registry.Publish(pctx, groups.NotificationGroup(recipient), payload); err != nil {
		logger.Warnf("[notify] push to %s failed (record %s persisted): %v", recipient, n.ID, err)
	}
	return n, nil
}

// The socket envelope is the flattened record with "type" carrying the
// notification type, matching the pull-API shape.
type notificationEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	ObjectID  string    `json:"object_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func buildEvent(n *Notification) []byte {
	b, _ := json.Marshal(notificationEvent{
		Type:      n.Type,
		ID:        n.ID,
		Recipient: n.Recipient,
		Sender:    n.Sender,
		Content:   n.Content,
		ObjectID:  n.ObjectID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	})
	return b
}
