package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes settlement events as JSON, keyed by payee id so one
// payee's events land on one partition in order.
type KafkaPublisher struct {
	writer       MessageWriter
	topicByEvent map[string]string
}

// NewKafkaPublisher publishes every event type to "<prefix>.<event type>".
func NewKafkaPublisher(brokers []string, topicPrefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, Topics(topicPrefix)), nil
}

func NewKafkaPublisherWithWriter(w MessageWriter, topicByEvent map[string]string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topicByEvent: topicByEvent}
}

// Topics maps each settlement event type to its topic under prefix.
func Topics(prefix string) map[string]string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	types := []string{
		domain.EventCommissionCaptured,
		domain.EventCommissionReleased,
		domain.EventCommissionRefunded,
		domain.EventPayoutCreated,
		domain.EventPayoutProcessing,
		domain.EventPayoutCompleted,
		domain.EventPayoutCancelled,
		domain.EventPayoutFailed,
	}
	out := make(map[string]string, len(types))
	for _, t := range types {
		if prefix == "" {
			out[t] = t
			continue
		}
		out[t] = prefix + "." + t
	}
	return out
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	topic := event.Type
	if mapped, ok := p.topicByEvent[event.Type]; ok && mapped != "" {
		topic = mapped
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
