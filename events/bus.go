// Package events fans order lifecycle events out to in-process subscribers.
// Emission is fire-and-forget: a slow or absent subscriber never blocks or
// rolls back the state transition that produced the event.
package events

import (
	"sync"

	"go.uber.org/zap"

	"shopcore/models"
)

type Bus struct {
	mu     sync.RWMutex
	subs   []chan models.OrderEvent
	closed bool
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a buffered subscriber channel. The channel is closed
// when the bus shuts down.
func (b *Bus) Subscribe(buffer int) <-chan models.OrderEvent {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.OrderEvent, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber without blocking. Events
// for subscribers with a full buffer are dropped and logged.
func (b *Bus) Publish(ev models.OrderEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				zap.String("event_type", ev.EventType),
				zap.Int("order_id", ev.OrderID),
			)
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
