package notify

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/bazario/pushgate/logger"
)

// Producer publishes the domain events this process originates. The consumer
// side may live in this worker or any other one; both speak the same
// subjects.
type Producer struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

func NewProducer(url, name string) (*Producer, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream context")
	}
	return &Producer{nc: nc, js: js}, nil
}

// MessageCreated emits events.message.created for a freshly persisted chat
// message. Publish failures are logged only: the message itself is already
// durable and delivered, the notification records catch up when the bus is
// back.
func (p *Producer) MessageCreated(conversationID, sender string, participants []string) {
	b, err := json.Marshal(MessageCreatedEvent{
		ConversationID: conversationID,
		Sender:         sender,
		Participants:   participants,
	})
	if err != nil {
		logger.Errorf("[notify] marshal %s: %v", SubjectMessageCreated, err)
		return
	}
	if _, err := p.js.Publish(SubjectMessageCreated, b); err != nil {
		logger.Warnf("[notify] publish %s conv=%s: %v", SubjectMessageCreated, conversationID, err)
	}
}

func (p *Producer) Close() error {
	return p.nc.Drain()
}
