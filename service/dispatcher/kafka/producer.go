// Package kafka feeds delivered chat messages to the analytics pipeline.
// Everything here is fire-and-forget: the gateway never waits on Kafka.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/bazario/pushgate/logger"
	"github.com/bazario/pushgate/service/gateway"
)

type Producer struct {
	ap    sarama.AsyncProducer
	topic string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Errors = true

	ap, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "kafka async producer")
	}
	p := &Producer{ap: ap, topic: topic}
	go p.drainErrors()
	return p, nil
}

func (p *Producer) drainErrors() {
	for err := range p.ap.Errors() {
		logger.Warnf("[kafka] archive produce err: %v", err)
	}
}

type archiveRecord struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Archive implements gateway.Archiver. Keyed by conversation so a partition
// preserves per-conversation order.
func (p *Producer) Archive(conversationID string, m *gateway.Message) {
	rec := archiveRecord{
		ConversationID: conversationID,
		MessageID:      m.ID,
		Sender:         m.Sender,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		logger.Warnf("[kafka] marshal archive record: %v", err)
		return
	}
	p.ap.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(conversationID),
		Value: sarama.ByteEncoder(b),
	}
}

func (p *Producer) Close() error {
	return p.ap.Close()
}
