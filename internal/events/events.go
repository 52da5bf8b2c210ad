package events

import (
	"context"
	"fmt"

	"github.com/couchdir/couchdir/config"
)

// Publisher delivers migration outcome events to a broker. The
// migration only ever emits; consuming is someone else's concern.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// FromConfig builds the configured publisher. Backend "none" returns
// nil: events disabled.
func FromConfig(ctx context.Context, cfg config.Config) (Publisher, error) {
	switch cfg.EventsBackend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}
