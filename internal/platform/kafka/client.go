package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"qrscan/internal/platform/config"
)

// Client wraps a franz-go client with health checking.
type Client struct {
	*kgo.Client
}

// New connects to the configured brokers. Returns nil if no brokers are set
// (Kafka not configured).
func New(ctx context.Context, cfg config.KafkaConfig, opts ...kgo.Opt) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	opts = append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks that at least one broker answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx)
}
