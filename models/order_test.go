package models

import (
	"errors"
	"strings"
	"testing"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to confirmed", OrderStatusPending, OrderStatusConfirmed, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"confirmed to processing", OrderStatusConfirmed, OrderStatusProcessing, true},
		{"confirmed to cancelled", OrderStatusConfirmed, OrderStatusCancelled, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to processing on failed delivery", OrderStatusShipped, OrderStatusProcessing, true},
		{"shipped to refunded", OrderStatusShipped, OrderStatusRefunded, true},
		{"delivered to refunded", OrderStatusDelivered, OrderStatusRefunded, true},

		{"no backward shipped to confirmed", OrderStatusShipped, OrderStatusConfirmed, false},
		{"no cancel after shipping", OrderStatusShipped, OrderStatusCancelled, false},
		{"no cancel after delivery", OrderStatusDelivered, OrderStatusCancelled, false},
		{"no skip pending to processing", OrderStatusPending, OrderStatusProcessing, false},
		{"no skip pending to shipped", OrderStatusPending, OrderStatusShipped, false},
		{"no skip confirmed to delivered", OrderStatusConfirmed, OrderStatusDelivered, false},
		{"no skip processing to delivered", OrderStatusProcessing, OrderStatusDelivered, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusPending, false},
		{"refunded is terminal", OrderStatusRefunded, OrderStatusDelivered, false},
		{"no refund before shipping", OrderStatusProcessing, OrderStatusRefunded, false},
		{"no self transition", OrderStatusPending, OrderStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestOrderStatus_LegalNext(t *testing.T) {
	next := OrderStatusShipped.LegalNext()
	want := map[OrderStatus]bool{
		OrderStatusDelivered:  true,
		OrderStatusProcessing: true,
		OrderStatusRefunded:   true,
	}
	if len(next) != len(want) {
		t.Fatalf("LegalNext(SHIPPED) = %v, want 3 states", next)
	}
	for _, s := range next {
		if !want[s] {
			t.Errorf("LegalNext(SHIPPED) contains unexpected state %s", s)
		}
	}

	if got := OrderStatusCancelled.LegalNext(); len(got) != 0 {
		t.Errorf("LegalNext(CANCELLED) = %v, want empty", got)
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusCancelled, OrderStatusRefunded}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("SHIPPED"); err != nil {
		t.Errorf("expected SHIPPED to parse, got %v", err)
	}

	_, err := ParseOrderStatus("shipped")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("expected ValidationError for lowercase status, got %v", err)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for _, raw := range []string{"CREDIT_CARD", "PAYPAL", "VN_PAY", "COD", "BANK_TRANSFER"} {
		if _, err := ParsePaymentMethod(raw); err != nil {
			t.Errorf("expected %s to parse, got %v", raw, err)
		}
	}
	if _, err := ParsePaymentMethod("BITCOIN"); err == nil {
		t.Error("expected error for unknown payment method")
	}
}

func TestPaymentMethod_Prepaid(t *testing.T) {
	if PaymentMethodCOD.Prepaid() {
		t.Error("COD should not be prepaid")
	}
	for _, m := range []PaymentMethod{PaymentMethodCreditCard, PaymentMethodPayPal,
		PaymentMethodVNPay, PaymentMethodBankTransfer} {
		if !m.Prepaid() {
			t.Errorf("%s should be prepaid", m)
		}
	}
}

func TestInvalidStateTransitionError_Message(t *testing.T) {
	err := &InvalidStateTransitionError{
		From:      OrderStatusShipped,
		To:        OrderStatusConfirmed,
		LegalNext: OrderStatusShipped.LegalNext(),
	}
	msg := err.Error()
	for _, fragment := range []string{"SHIPPED", "CONFIRMED", "DELIVERED"} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("error message %q missing %q", msg, fragment)
		}
	}
}
