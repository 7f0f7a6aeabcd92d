package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

// orderTransitions is the single source of truth for the order lifecycle.
// SHIPPED -> PROCESSING is the delivery-failure path: a failed delivery
// attempt returns the order to the fulfillment queue for another attempt.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusProcessing, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LegalNext returns the set of statuses reachable from s. The returned slice
// is a copy and safe to hand to callers.
func (s OrderStatus) LegalNext() []OrderStatus {
	next := orderTransitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return s, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown order status %q", raw)}
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleShipper  Role = "shipper"
	RoleAdmin    Role = "admin"
)

type Order struct {
	ID              int         `json:"id"`
	UserID          int         `json:"user_id"`
	Status          OrderStatus `json:"status"`
	ShippingName    string      `json:"shipping_name"`
	ShippingPhone   string      `json:"shipping_phone"`
	ShippingAddress string      `json:"shipping_address"`
	TotalPrice      float64     `json:"total_price"`
	StatusNote      string      `json:"status_note,omitempty"`
	ProofOfDelivery string      `json:"proof_of_delivery,omitempty"`
	Version         int         `json:"version"`
	Items           []OrderItem `json:"items,omitempty"`
	Payment         *Payment    `json:"payment,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID        int     `json:"id"`
	OrderID   int     `json:"order_id"`
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type ShippingInfo struct {
	Name    string `json:"shipping_name"`
	Phone   string `json:"shipping_phone"`
	Address string `json:"shipping_address"`
}
