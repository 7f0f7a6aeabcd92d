package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/events"
	"shopcore/middleware"
	"shopcore/models"
)

type OrderService struct {
	db     *sql.DB
	bus    *events.Bus
	logger *zap.Logger
}

func NewOrderService(db *sql.DB, bus *events.Bus, logger *zap.Logger) *OrderService {
	return &OrderService{db: db, bus: bus, logger: logger}
}

// Actor identifies who is driving a transition. Internal callers (the
// payment coupling) use systemActor, which bypasses the role gate.
type Actor struct {
	UserID int
	Role   models.Role
	system bool
}

func systemActor() Actor {
	return Actor{system: true}
}

// TransitionOptions carries the optional note and the proof-of-delivery
// reference a shipper must attach when confirming delivery.
type TransitionOptions struct {
	Note            string
	ProofOfDelivery string
}

// roleMayTransition is the exhaustive role gate. Shippers get exactly the
// delivery steps: dispatch, hand-over, and the delivery-failure return to
// PROCESSING; they cannot pull a confirmed order into fulfillment. The gate
// runs before state legality so an unauthorized actor never learns which
// states are reachable.
func roleMayTransition(role models.Role, from, to models.OrderStatus) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleShipper:
		switch {
		case from == models.OrderStatusProcessing && to == models.OrderStatusShipped:
			return true
		case from == models.OrderStatusShipped && to == models.OrderStatusDelivered:
			return true
		case from == models.OrderStatusShipped && to == models.OrderStatusProcessing:
			return true
		}
		return false
	case models.RoleCustomer:
		return to == models.OrderStatusCancelled
	}
	return false
}

// confirmableWithPayment is the tagged dispatch over PaymentMethod that
// gates PENDING -> CONFIRMED: prepaid methods need a completed payment,
// cash on delivery auto-confirms with payment still pending.
func confirmableWithPayment(payment *models.Payment) bool {
	switch payment.Method {
	case models.PaymentMethodCOD:
		return true
	case models.PaymentMethodCreditCard, models.PaymentMethodPayPal,
		models.PaymentMethodVNPay, models.PaymentMethodBankTransfer:
		return payment.Status == models.PaymentStatusCompleted
	}
	return false
}

func (s *OrderService) ListByUser(ctx context.Context, userID int) ([]models.Order, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "OrderService.ListByUser")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, status, shipping_name, shipping_phone, shipping_address,
		        total_price, version, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.ShippingName, &o.ShippingPhone,
			&o.ShippingAddress, &o.TotalPrice, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetByID loads the full order with items and payment. Customers can only
// see their own orders; the mismatch surfaces as NotFoundError.
func (s *OrderService) GetByID(ctx context.Context, orderID int, actor Actor) (*models.Order, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "OrderService.GetByID")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", orderID))

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.system && actor.Role == models.RoleCustomer && order.UserID != actor.UserID {
		return nil, &models.NotFoundError{Resource: "order", ID: orderID}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, order_id, product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}

	payment, err := s.loadPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Payment = payment
	return order, nil
}

// Cancel is the customer/admin cancellation path, legal before SHIPPED.
func (s *OrderService) Cancel(ctx context.Context, orderID int, actor Actor, note string) (*models.Order, error) {
	return s.Transition(ctx, orderID, models.OrderStatusCancelled, actor, TransitionOptions{Note: note})
}

// Transition applies one step of the order state machine. Check order:
// existence, ownership, role gate, input validation, state legality,
// payment coupling, then the optimistic-concurrency write. The loser of a
// concurrent write receives ConcurrencyConflictError.
func (s *OrderService) Transition(ctx context.Context, orderID int, to models.OrderStatus, actor Actor, opts TransitionOptions) (*models.Order, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "OrderService.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("order.to_status", string(to)),
	)

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.system && actor.Role == models.RoleCustomer && order.UserID != actor.UserID {
		return nil, &models.NotFoundError{Resource: "order", ID: orderID}
	}

	if !actor.system && !roleMayTransition(actor.Role, order.Status, to) {
		return nil, &models.UnauthorizedRoleError{
			Role:   actor.Role,
			Action: fmt.Sprintf("transition order to %s", to),
		}
	}

	if to == models.OrderStatusDelivered && actor.Role == models.RoleShipper && opts.ProofOfDelivery == "" {
		return nil, &models.ValidationError{Field: "proof_of_delivery", Reason: "required to confirm delivery"}
	}

	if !order.Status.CanTransitionTo(to) {
		return nil, &models.InvalidStateTransitionError{
			From:      order.Status,
			To:        to,
			LegalNext: order.Status.LegalNext(),
		}
	}

	payment, err := s.loadPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if to == models.OrderStatusConfirmed && !confirmableWithPayment(payment) {
		return nil, &models.ValidationError{
			Field:  "payment_status",
			Reason: "payment must be completed before the order can be confirmed",
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1,
		        status_note = COALESCE(NULLIF($2, ''), status_note),
		        proof_of_delivery = COALESCE(NULLIF($3, ''), proof_of_delivery),
		        version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $4 AND version = $5
		 RETURNING version, updated_at`,
		to, opts.Note, opts.ProofOfDelivery, orderID, order.Version,
	).Scan(&order.Version, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.ConcurrencyConflictError{OrderID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	// Payment coupling on the reversal paths: a refund, or a cancellation
	// of an already-settled prepaid order, flips the payment to REFUNDED.
	refundPayment := to == models.OrderStatusRefunded ||
		(to == models.OrderStatusCancelled && payment.Status == models.PaymentStatusCompleted)
	if refundPayment {
		if _, err := tx.ExecContext(ctx,
			"UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE order_id = $2",
			models.PaymentStatusRefunded, orderID,
		); err != nil {
			return nil, fmt.Errorf("failed to refund payment: %w", err)
		}
		payment.Status = models.PaymentStatusRefunded
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}

	from := order.Status
	order.Status = to
	order.Payment = payment
	if opts.Note != "" {
		order.StatusNote = opts.Note
	}
	if opts.ProofOfDelivery != "" {
		order.ProofOfDelivery = opts.ProofOfDelivery
	}

	middleware.RecordOrderTransition(string(from), string(to))
	s.bus.Publish(models.OrderEvent{
		EventID:    uuid.NewString(),
		EventType:  models.EventTypeForStatus(to),
		OrderID:    order.ID,
		UserID:     order.UserID,
		FromStatus: from,
		ToStatus:   to,
		TotalPrice: order.TotalPrice,
		Note:       opts.Note,
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("Order transitioned",
		zap.Int("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("role", string(actor.Role)),
	)
	return order, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderID int) (*models.Order, error) {
	var o models.Order
	var note, proof sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, shipping_name, shipping_phone, shipping_address,
		        total_price, status_note, proof_of_delivery, version, created_at, updated_at
		 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Status, &o.ShippingName, &o.ShippingPhone, &o.ShippingAddress,
		&o.TotalPrice, &note, &proof, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "order", ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	o.StatusNote = note.String
	o.ProofOfDelivery = proof.String
	return &o, nil
}

func (s *OrderService) loadPayment(ctx context.Context, orderID int) (*models.Payment, error) {
	var p models.Payment
	var txnID sql.NullString
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, method, status, amount, transaction_id, paid_at, created_at, updated_at
		 FROM payments WHERE order_id = $1`,
		orderID,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &txnID, &paidAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "payment for order", ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	p.TransactionID = txnID.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}
