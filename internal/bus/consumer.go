package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"go-micro.dev/v5/broker"

	"github.com/go-url-platform/shortener/internal/obs"
)

// Consumer runs consumerConcurrency queue-grouped subscriptions against the
// click-events topic, decoding each message and appending it to the shared
// Batcher. NATS load-balances deliveries across the queue group, giving the
// "poll with N concurrent workers" semantics the spec names without an
// explicit offset-based poll loop.
type Consumer struct {
	broker        broker.Broker
	topic         string
	queue         string
	batcher       *Batcher
	concurrency   int
	subscriptions []broker.Subscriber
}

func NewConsumer(b broker.Broker, topic string, batcher *Batcher, concurrency int) *Consumer {
	return &Consumer{
		broker:      b,
		topic:       topic,
		queue:       "stats-consumer",
		batcher:     batcher,
		concurrency: concurrency,
	}
}

// Start registers concurrency subscriptions on the same queue group. Each
// handler deserializes the event and appends it to the batcher; the handler
// returns nil even on decode/append failure so a single malformed message
// cannot block the subject (failures are logged for out-of-band recovery,
// matching the degraded-ack path in the consumer's contract).
func (c *Consumer) Start(ctx context.Context) error {
	for i := 0; i < c.concurrency; i++ {
		sub, err := c.broker.Subscribe(c.topic, c.handle(ctx), broker.Queue(c.queue))
		if err != nil {
			return fmt.Errorf("bus: subscribe worker %d: %w", i, err)
		}
		c.subscriptions = append(c.subscriptions, sub)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context) broker.Handler {
	return func(event broker.Event) error {
		var click ClickEvent
		if err := json.Unmarshal(event.Message().Body, &click); err != nil {
			logrus.WithError(err).Warn("bus: dropping malformed click event")
			return nil
		}

		obs.RecordNATSMessageReceived("stats-svc", c.topic)
		c.batcher.Append(ctx, click)
		return nil
	}
}

// Stop unsubscribes every worker and performs a final batcher flush.
func (c *Consumer) Stop(ctx context.Context) {
	for _, sub := range c.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			logrus.WithError(err).Warn("bus: unsubscribe failed during shutdown")
		}
	}
	c.batcher.Flush(ctx)
}
