package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

const headerEventType = "event-type"

// KafkaPublisher produces events to a topic and waits for broker acknowledgement.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher returns a publisher writing to topic.
func NewKafkaPublisher(client *kgo.Client, topic string) *KafkaPublisher {
	return &KafkaPublisher{client: client, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Submitted) error {
	if e.Type == "" {
		e.Type = TypeSubmitted
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	rec := &kgo.Record{
		Topic:   p.topic,
		Key:     []byte(e.Key()),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: headerEventType, Value: []byte(e.Type)}},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", e.Type, err)
	}
	return nil
}
