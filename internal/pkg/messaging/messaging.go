// Package messaging publishes domain events to the broker selected in config:
// Kafka, NATS, NSQ, Google Pub/Sub, or none.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
	"sync"
)

const (
	DriverNone         = "none"
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
)

var (
	ErrUnknownDriver = errors.New("messaging: unknown driver")
	ErrTopicRequired = errors.New("messaging: topic is required")
	ErrClosed        = errors.New("messaging: client closed")
)

// Message is one event. Key selects the Kafka partition. Headers become
// Kafka or NATS headers and Pub/Sub attributes; NSQ has no headers and
// drops them.
type Message struct {
	Key     []byte
	Body    []byte
	Headers map[string]string
}

type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}

// Messaging is a Publisher that owns a broker connection.
type Messaging interface {
	io.Closer
	Publisher
}

// Options holds the settings of every driver; only the selected one is read.
type Options struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
}

// New opens a client for driver. An empty driver is DriverNone.
func New(ctx context.Context, driver string, opts Options) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return Discard{}, nil
	case DriverNSQ:
		return NewNSQ(opts.NSQ)
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverGooglePubSub:
		return NewPubSub(ctx, opts.PubSub)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Discard accepts every message and sends nothing.
type Discard struct{}

func (Discard) Publish(ctx context.Context, topic string, _ Message) error {
	if topic == "" {
		return ErrTopicRequired
	}
	return ctx.Err()
}

func (Discard) Close() error { return nil }

// topics lazily creates one broker handle per topic and releases them all
// on close.
type topics[T any] struct {
	open    func(topic string) T
	release func(T) error

	mu     sync.Mutex
	byName map[string]T
	closed bool
}

func newTopics[T any](open func(string) T, release func(T) error) *topics[T] {
	return &topics[T]{open: open, release: release, byName: map[string]T{}}
}

func (t *topics[T]) get(topic string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if t.closed {
		return zero, ErrClosed
	}
	h, ok := t.byName[topic]
	if !ok {
		h = t.open(topic)
		t.byName[topic] = h
	}
	return h, nil
}

func (t *topics[T]) close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	handles := maps.Clone(t.byName)
	clear(t.byName)
	t.mu.Unlock()

	var errs []error
	for _, h := range handles {
		errs = append(errs, t.release(h))
	}
	return errors.Join(errs...)
}

func checkPublish(ctx context.Context, topic string) error {
	if topic == "" {
		return ErrTopicRequired
	}
	return ctx.Err()
}
