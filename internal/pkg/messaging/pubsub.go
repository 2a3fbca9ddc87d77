package messaging

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

type PubSubConfig struct {
	ProjectID     string
	ClientOptions []option.ClientOption
}

// PubSub publishes through one batching publisher per topic and waits for
// the server ack. Headers are sent as attributes.
type PubSub struct {
	client     *pubsub.Client
	publishers *topics[*pubsub.Publisher]
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub client: %w", err)
	}

	stop := func(p *pubsub.Publisher) error {
		p.Stop()
		return nil
	}

	return &PubSub{
		client:     client,
		publishers: newTopics(client.Publisher, stop),
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg Message) error {
	if err := checkPublish(ctx, topic); err != nil {
		return err
	}

	pub, err := p.publishers.get(topic)
	if err != nil {
		return err
	}

	res := pub.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: msg.Headers})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("messaging: pubsub publish %s: %w", topic, err)
	}
	return nil
}

func (p *PubSub) Close() error {
	return errors.Join(p.publishers.close(), p.client.Close())
}
