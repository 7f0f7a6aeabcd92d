package models

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentMethodPayPal       PaymentMethod = "PAYPAL"
	PaymentMethodVNPay        PaymentMethod = "VN_PAY"
	PaymentMethodCOD          PaymentMethod = "COD"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(raw)
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodVNPay,
		PaymentMethodCOD, PaymentMethodBankTransfer:
		return m, nil
	}
	return "", &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown payment method %q", raw)}
}

// Prepaid reports whether the method settles through an external gateway
// before the order is confirmed. COD settles at delivery.
func (m PaymentMethod) Prepaid() bool {
	return m != PaymentMethodCOD
}

type Payment struct {
	ID            int           `json:"id"`
	OrderID       int           `json:"order_id"`
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
