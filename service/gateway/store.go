package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Message is the read-side shape delivered over the socket.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrNotFound: the conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrNotMember: the store re-checked membership at write time and the
	// sender was no longer a participant.
	ErrNotMember = errors.New("sender is not a conversation member")
)

// MembershipOracle answers "is user U a member of conversation C". Owned by
// the data layer; the gateway only calls it.
type MembershipOracle interface {
	IsMember(ctx context.Context, userID, conversationID string) (bool, error)
}

// MessageStore persists chat messages and resolves conversation membership
// lists for fan-out. Implementations must return ErrNotMember from
// CreateMessage when the sender lost membership between the oracle check and
// the write.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID, sender, content string) (*Message, error)
	ListMembers(ctx context.Context, conversationID string) ([]string, error)
}

// Archiver receives every successfully delivered message, fire-and-forget.
type Archiver interface {
	Archive(conversationID string, m *Message)
}

// EventSink receives domain events for messages that made it to the store,
// fire-and-forget. The notification rules hang off these events, so every
// persisted message must produce exactly one MessageCreated.
type EventSink interface {
	MessageCreated(conversationID, sender string, participants []string)
}
