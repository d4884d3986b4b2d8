// Package chat is the reference data-layer collaborator for conversations
// and messages, backed by MongoDB. The gateway never imports concrete store
// types; it sees only the interfaces in service/gateway.
package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bazario/pushgate/service/gateway"
	"github.com/bazario/pushgate/tools/ids"
)

const (
	collConversations = "conversations"
	collMessages      = "messages"
)

type conversationDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Participants []string           `bson:"participants"`
	ListingID    string             `bson:"listing_id,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	Sender         string    `bson:"sender"`
	Content        string    `bson:"content"`
	IsRead         bool      `bson:"is_read"`
	CreatedAt      time.Time `bson:"created_at"`
}

// Store implements gateway.MembershipOracle and gateway.MessageStore.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) IsMember(ctx context.Context, userID, conversationID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return false, nil // not a conversation id at all
	}
	n, err := s.db.Collection(collConversations).CountDocuments(ctx,
		bson.M{"_id": oid, "participants": userID})
	if err != nil {
		return false, errors.Wrap(err, "count membership")
	}
	return n > 0, nil
}

// CreateMessage re-checks membership inside its own conversation lookup, so a
// revocation after the gateway's oracle check comes back as ErrNotMember
// instead of a silently persisted message.
func (s *Store) CreateMessage(ctx context.Context, conversationID, sender, content string) (*gateway.Message, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, gateway.ErrNotFound
	}

	var conv conversationDoc
	err = s.db.Collection(collConversations).
		FindOne(ctx, bson.M{"_id": oid, "participants": sender}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// distinguish missing conversation from revoked membership
		n, cntErr := s.db.Collection(collConversations).CountDocuments(ctx, bson.M{"_id": oid})
		if cntErr == nil && n == 0 {
			return nil, gateway.ErrNotFound
		}
		return nil, gateway.ErrNotMember
	}
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}

	now := time.Now().UTC()
	doc := messageDoc{
		ID:             ids.GenerateString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		IsRead:         false,
		CreatedAt:      now,
	}
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "insert message")
	}

	// bump the conversation so list views sort by recency
	_, _ = s.db.Collection(collConversations).UpdateByID(ctx, oid,
		bson.M{"$set": bson.M{"updated_at": now}})

	return &gateway.Message{
		ID:        doc.ID,
		Sender:    doc.Sender,
		Content:   doc.Content,
		IsRead:    doc.IsRead,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *Store) ListMembers(ctx context.Context, conversationID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, gateway.ErrNotFound
	}
	var conv conversationDoc
	err = s.db.Collection(collConversations).FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	return conv.Participants, nil
}
