package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"shopcore/models"
)

// Notifier bridges the in-process event bus to the order_events topic.
// Delivery is at-least-once and strictly best-effort: a publish failure is
// logged and never propagates back into the state transition.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewNotifier(producer sarama.SyncProducer, logger *zap.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		topic:    getEnv("KAFKA_TOPIC", "order_events"),
		logger:   logger,
	}
}

// Run consumes bus events until the channel closes or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, eventsCh <-chan models.OrderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventsCh:
			if !ok {
				return
			}
			if err := PublishEvent(ctx, n.producer, n.topic, ev, n.logger); err != nil {
				n.logger.Error("Failed to publish order event",
					zap.String("event_type", ev.EventType),
					zap.Int("order_id", ev.OrderID),
					zap.Error(err),
				)
			}
		}
	}
}
