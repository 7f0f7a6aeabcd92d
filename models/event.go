package models

import "time"

// OrderEvent is the wire shape published to the order_events topic for the
// notification service and other downstream consumers.
type OrderEvent struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	OrderID    int         `json:"order_id"`
	UserID     int         `json:"user_id"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	ToStatus   OrderStatus `json:"to_status,omitempty"`
	TotalPrice float64     `json:"total_price,omitempty"`
	Note       string      `json:"note,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

const (
	EventOrderCreated    = "order_created"
	EventOrderConfirmed  = "order_confirmed"
	EventOrderProcessing = "order_processing"
	EventOrderShipped    = "order_shipped"
	EventOrderDelivered  = "order_delivered"
	EventOrderCancelled  = "order_cancelled"
	EventOrderRefunded   = "order_refunded"
	EventPaymentReceived = "payment_received"
	EventPaymentFailed   = "payment_failed"
)

// EventTypeForStatus maps a reached status to its event type.
func EventTypeForStatus(s OrderStatus) string {
	switch s {
	case OrderStatusConfirmed:
		return EventOrderConfirmed
	case OrderStatusProcessing:
		return EventOrderProcessing
	case OrderStatusShipped:
		return EventOrderShipped
	case OrderStatusDelivered:
		return EventOrderDelivered
	case OrderStatusCancelled:
		return EventOrderCancelled
	case OrderStatusRefunded:
		return EventOrderRefunded
	}
	return "order_updated"
}
