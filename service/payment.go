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

type PaymentService struct {
	db     *sql.DB
	orders *OrderService
	bus    *events.Bus
	logger *zap.Logger
}

func NewPaymentService(db *sql.DB, orders *OrderService, bus *events.Bus, logger *zap.Logger) *PaymentService {
	return &PaymentService{db: db, orders: orders, bus: bus, logger: logger}
}

// ConfirmCODReceipt settles a cash-on-delivery payment after the shipper
// has collected it. The confirmation is idempotent: repeating it on an
// already-settled payment is a no-op so retried requests are harmless.
func (s *PaymentService) ConfirmCODReceipt(ctx context.Context, orderID int, actor Actor) (*models.Payment, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "PaymentService.ConfirmCODReceipt")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", orderID))

	if actor.Role != models.RoleShipper && actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedRoleError{Role: actor.Role, Action: "confirm payment receipt"}
	}

	order, err := s.orders.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.orders.loadPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if payment.Method != models.PaymentMethodCOD {
		return nil, &models.ValidationError{
			Field:  "payment_method",
			Reason: "receipt confirmation applies only to cash-on-delivery orders",
		}
	}
	if payment.Status == models.PaymentStatusCompleted {
		span.SetAttributes(attribute.Bool("payment.already_completed", true))
		return payment, nil
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, &models.ValidationError{
			Field:  "order_status",
			Reason: "order must be delivered before the receipt can be confirmed",
		}
	}

	receiptID := "COD-" + uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, transaction_id = $2, paid_at = CURRENT_TIMESTAMP,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE order_id = $3 AND status = $4`,
		models.PaymentStatusCompleted, receiptID, orderID, models.PaymentStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to settle COD payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check COD settlement: %w", err)
	}
	if affected == 0 {
		// A concurrent confirmation won; re-read and report its result.
		return s.orders.loadPayment(ctx, orderID)
	}

	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID = receiptID
	now := time.Now().UTC()
	payment.PaidAt = &now

	middleware.RecordPaymentSettled("cod")
	s.bus.Publish(models.OrderEvent{
		EventID:    uuid.NewString(),
		EventType:  models.EventPaymentReceived,
		OrderID:    orderID,
		UserID:     order.UserID,
		TotalPrice: payment.Amount,
		OccurredAt: now,
	})

	s.logger.Info("COD payment settled",
		zap.Int("order_id", orderID),
		zap.String("transaction_id", receiptID),
	)
	return payment, nil
}

// ConfirmGatewayPayment records the external gateway's verdict for a
// prepaid payment. A successful charge completes the payment and triggers
// the PENDING -> CONFIRMED coupling; a declined one marks it FAILED.
// Repeated callbacks for a settled payment are no-ops.
func (s *PaymentService) ConfirmGatewayPayment(ctx context.Context, orderID int, transactionID string, succeeded bool) (*models.Payment, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "PaymentService.ConfirmGatewayPayment")
	defer span.End()
	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.Bool("payment.succeeded", succeeded),
	)

	order, err := s.orders.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.orders.loadPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !payment.Method.Prepaid() {
		return nil, &models.ValidationError{
			Field:  "payment_method",
			Reason: "gateway confirmation applies only to prepaid orders",
		}
	}
	if payment.Status != models.PaymentStatusPending {
		span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
		return payment, nil
	}

	if !succeeded {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE payments SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE order_id = $2 AND status = $3",
			models.PaymentStatusFailed, orderID, models.PaymentStatusPending,
		); err != nil {
			return nil, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		payment.Status = models.PaymentStatusFailed
		middleware.RecordPaymentSettled("failed")
		s.bus.Publish(models.OrderEvent{
			EventID:    uuid.NewString(),
			EventType:  models.EventPaymentFailed,
			OrderID:    orderID,
			UserID:     order.UserID,
			TotalPrice: payment.Amount,
			OccurredAt: time.Now().UTC(),
		})
		return payment, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, transaction_id = $2, paid_at = CURRENT_TIMESTAMP,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE order_id = $3 AND status = $4`,
		models.PaymentStatusCompleted, transactionID, orderID, models.PaymentStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check payment completion: %w", err)
	}
	if affected == 0 {
		return s.orders.loadPayment(ctx, orderID)
	}

	payment.Status = models.PaymentStatusCompleted
	payment.TransactionID = transactionID
	now := time.Now().UTC()
	payment.PaidAt = &now
	middleware.RecordPaymentSettled("gateway")

	// Completed prepaid payment permits PENDING -> CONFIRMED. The order may
	// have moved on (cancelled) in the meantime; that is not a payment
	// failure, so an illegal transition here is logged, not returned.
	if _, err := s.orders.Transition(ctx, orderID, models.OrderStatusConfirmed, systemActor(),
		TransitionOptions{Note: "payment confirmed"}); err != nil {
		var transitionErr *models.InvalidStateTransitionError
		if errors.As(err, &transitionErr) {
			s.logger.Warn("Payment completed but order not confirmable",
				zap.Int("order_id", orderID),
				zap.String("order_status", string(transitionErr.From)),
			)
		} else {
			return nil, err
		}
	}

	s.logger.Info("Gateway payment completed",
		zap.Int("order_id", orderID),
		zap.String("transaction_id", transactionID),
	)
	return payment, nil
}
