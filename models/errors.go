package models

import (
	"fmt"
	"strings"
)

// ValidationError rejects malformed input (bad quantity, unknown enum value).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError covers both genuinely missing rows and rows the caller does
// not own; ownership failures must not leak the row's existence.
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type CartEmptyError struct {
	UserID int
}

func (e *CartEmptyError) Error() string {
	return fmt.Sprintf("cart for user %d is empty", e.UserID)
}

type InvalidShippingAddressError struct {
	Reason string
}

func (e *InvalidShippingAddressError) Error() string {
	return fmt.Sprintf("invalid shipping address: %s", e.Reason)
}

// InvalidStateTransitionError reports the current status and the set of
// statuses that would have been legal.
type InvalidStateTransitionError struct {
	From      OrderStatus
	To        OrderStatus
	LegalNext []OrderStatus
}

func (e *InvalidStateTransitionError) Error() string {
	legal := make([]string, len(e.LegalNext))
	for i, s := range e.LegalNext {
		legal[i] = string(s)
	}
	return fmt.Sprintf("illegal transition %s -> %s, legal next states: [%s]",
		e.From, e.To, strings.Join(legal, " "))
}

type UnauthorizedRoleError struct {
	Role   Role
	Action string
}

func (e *UnauthorizedRoleError) Error() string {
	return fmt.Sprintf("role %s is not allowed to %s", e.Role, e.Action)
}

// ConcurrencyConflictError signals a lost optimistic-concurrency race; the
// caller should re-read the order and retry or give up.
type ConcurrencyConflictError struct {
	OrderID int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("order %d was modified concurrently, re-read and retry", e.OrderID)
}
