package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
)

var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

type KafkaConfig struct {
	Brokers []string
	Dialer  *kafka.Dialer
}

// Kafka writes through one kafka-go writer per topic, partitioned by key hash.
type Kafka struct {
	writers *topics[*kafka.Writer]
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	brokers := lo.Compact(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	open := func(topic string) *kafka.Writer {
		return kafka.NewWriter(kafka.WriterConfig{
			Brokers:  brokers,
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Dialer:   cfg.Dialer,
		})
	}

	return &Kafka{writers: newTopics(open, (*kafka.Writer).Close)}, nil
}

func (k *Kafka) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}

	w, err := k.writers.get(topic)
	if err != nil {
		return err
	}

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for key, val := range msg.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(val)})
	}

	if err := w.WriteMessages(ctx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Body,
		Headers: headers,
		Time:    time.Now(),
	}); err != nil {
		return fmt.Errorf("messaging: kafka write %s: %w", topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writers.close()
}
