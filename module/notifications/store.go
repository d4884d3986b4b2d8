// Package notifications holds the durable notification store and its pull
// API. Live push is the notify service's job; this side exists so a recipient
// with zero live connections still finds everything later.
package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bazario/pushgate/service/notify"
	"github.com/bazario/pushgate/tools/ids"
)

const collNotifications = "notifications"

var ErrNotOwner = errors.New("notification belongs to another user")

type notificationDoc struct {
	ID        string    `bson:"_id"`
	Recipient string    `bson:"recipient"`
	Sender    string    `bson:"sender"`
	Type      string    `bson:"notification_type"`
	Content   string    `bson:"content"`
	ObjectID  string    `bson:"object_id,omitempty"`
	IsRead    bool      `bson:"is_read"`
	CreatedAt time.Time `bson:"created_at"`
}

// Store implements notify.Store on MongoDB.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, n *notify.Notification) error {
	if n.ID == "" {
		n.ID = ids.GenerateString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	doc := notificationDoc{
		ID:        n.ID,
		Recipient: n.Recipient,
		Sender:    n.Sender,
		Type:      n.Type,
		Content:   n.Content,
		ObjectID:  n.ObjectID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	_, err := s.db.Collection(collNotifications).InsertOne(ctx, doc)
	return errors.Wrap(err, "insert notification")
}

func (s *Store) ListByRecipient(ctx context.Context, recipient string, unreadOnly bool) ([]notify.Notification, error) {
	filter := bson.M{"recipient": recipient}
	if unreadOnly {
		filter["is_read"] = false
	}
	cur, err := s.db.Collection(collNotifications).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find notifications")
	}
	defer cur.Close(ctx)

	var out []notify.Notification
	for cur.Next(ctx) {
		var doc notificationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decode notification")
		}
		out = append(out, notify.Notification{
			ID:        doc.ID,
			Recipient: doc.Recipient,
			Sender:    doc.Sender,
			Type:      doc.Type,
			Content:   doc.Content,
			ObjectID:  doc.ObjectID,
			IsRead:    doc.IsRead,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, errors.Wrap(cur.Err(), "cursor")
}

// MarkRead flips is_read for one notification, only if recipient owns it.
func (s *Store) MarkRead(ctx context.Context, id, recipient string) error {
	res, err := s.db.Collection(collNotifications).UpdateOne(ctx,
		bson.M{"_id": id, "recipient": recipient},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return errors.Wrap(err, "mark read")
	}
	if res.MatchedCount == 0 {
		return ErrNotOwner
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient string) error {
	_, err := s.db.Collection(collNotifications).UpdateMany(ctx,
		bson.M{"recipient": recipient, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}})
	return errors.Wrap(err, "mark all read")
}
