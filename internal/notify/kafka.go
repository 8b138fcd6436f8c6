package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes verification events as JSON keyed by session id, so
// one session's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		topic: topic,
	}
}

func (p *KafkaPublisher) DocumentVerified(ctx context.Context, ev VerificationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("notify kafka-failed topic=%s session=%s err=%v", p.topic, ev.SessionID, err)
		return fmt.Errorf("publish verification event: %w", err)
	}
	log.Printf("notify kafka topic=%s session=%s", p.topic, ev.SessionID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
