package events

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"shopcore/models"
)

func TestBus_PublishFansOut(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	first := bus.Subscribe(4)
	second := bus.Subscribe(4)

	bus.Publish(models.OrderEvent{EventType: models.EventOrderCreated, OrderID: 1})

	for i, ch := range []<-chan models.OrderEvent{first, second} {
		select {
		case ev := <-ch:
			if ev.OrderID != 1 || ev.EventType != models.EventOrderCreated {
				t.Errorf("subscriber %d got unexpected event %+v", i, ev)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestBus_PublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	defer bus.Close()

	ch := bus.Subscribe(1)

	bus.Publish(models.OrderEvent{EventType: models.EventOrderCreated, OrderID: 1})
	// Buffer is full now; this one is dropped, not blocked on.
	bus.Publish(models.OrderEvent{EventType: models.EventOrderConfirmed, OrderID: 2})

	ev := <-ch
	if ev.OrderID != 1 {
		t.Errorf("expected first event to survive, got %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Errorf("expected second event to be dropped, got %+v", ev)
	default:
	}
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	ch := bus.Subscribe(1)
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}

	// Publishing after close is a no-op.
	bus.Publish(models.OrderEvent{EventType: models.EventOrderCreated, OrderID: 1})

	if ch := bus.Subscribe(1); ch == nil {
		t.Error("Subscribe after close should return a closed channel, not nil")
	} else if _, ok := <-ch; ok {
		t.Error("expected post-close subscription to be closed immediately")
	}
}
