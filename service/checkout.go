package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/events"
	"shopcore/middleware"
	"shopcore/models"
)

const checkoutTimeout = 10 * time.Second

type CheckoutRequest struct {
	Shipping      models.ShippingInfo
	PaymentMethod models.PaymentMethod
}

type CheckoutService struct {
	db      *sql.DB
	catalog Catalog
	bus     *events.Bus
	logger  *zap.Logger
}

func NewCheckoutService(db *sql.DB, catalog Catalog, bus *events.Bus, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{db: db, catalog: catalog, bus: bus, logger: logger}
}

// Checkout converts the user's cart into an order in a single transaction:
// lock the cart row (serializes concurrent checkouts of the same cart),
// compare-and-decrement stock per line at the live price, freeze the order
// items, create the pending payment, and empty the cart. Any failure rolls
// the whole thing back.
func (s *CheckoutService) Checkout(ctx context.Context, userID int, req CheckoutRequest) (*models.Order, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CheckoutService.Checkout")
	defer span.End()
	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.String("payment_method", string(req.PaymentMethod)),
	)

	if err := validateShipping(req.Shipping); err != nil {
		return nil, err
	}
	if _, err := models.ParsePaymentMethod(string(req.PaymentMethod)); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkoutTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin checkout transaction: %w", err)
	}
	defer tx.Rollback()

	var cartID int
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM carts WHERE user_id = $1 FOR UPDATE",
		userID,
	).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.CartEmptyError{UserID: userID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}

	lines, err := readCartLines(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &models.CartEmptyError{UserID: userID}
	}

	// Decrement stock per line; the WHERE stock >= qty guard makes oversell
	// structurally impossible and RETURNING price gives the authoritative
	// price, not the cart's stale display snapshot.
	total := 0.0
	for i := range lines {
		var price float64
		err = tx.QueryRowContext(ctx,
			"UPDATE products SET stock = stock - $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND stock >= $2 RETURNING price",
			lines[i].ProductID, lines[i].Quantity,
		).Scan(&price)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.stockFailure(ctx, lines[i].ProductID, lines[i].Quantity)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock for product %d: %w", lines[i].ProductID, err)
		}
		lines[i].Price = price
		total += price * float64(lines[i].Quantity)
	}

	order := models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		ShippingName:    req.Shipping.Name,
		ShippingPhone:   req.Shipping.Phone,
		ShippingAddress: req.Shipping.Address,
		TotalPrice:      total,
		Version:         1,
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, status, shipping_name, shipping_phone, shipping_address, total_price)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		order.UserID, order.Status, order.ShippingName, order.ShippingPhone, order.ShippingAddress, order.TotalPrice,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, line := range lines {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		}
		err = tx.QueryRowContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id",
			item.OrderID, item.ProductID, item.Quantity, item.Price,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	payment := models.Payment{
		OrderID: order.ID,
		Method:  req.PaymentMethod,
		Status:  models.PaymentStatusPending,
		Amount:  total,
	}
	err = tx.QueryRowContext(ctx,
		"INSERT INTO payments (order_id, method, status, amount) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at",
		payment.OrderID, payment.Method, payment.Status, payment.Amount,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	order.Payment = &payment

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return nil, fmt.Errorf("failed to empty cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	// Post-commit: best-effort cache invalidation and event emission, both
	// outside the consistency boundary.
	for _, line := range lines {
		if err := s.catalog.Invalidate(ctx, line.ProductID); err != nil {
			s.logger.Warn("Failed to invalidate product cache",
				zap.Int("product_id", line.ProductID), zap.Error(err))
		}
	}
	s.bus.Publish(models.OrderEvent{
		EventID:    uuid.NewString(),
		EventType:  models.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		ToStatus:   order.Status,
		TotalPrice: order.TotalPrice,
		OccurredAt: time.Now().UTC(),
	})
	middleware.RecordCheckout("success")

	s.logger.Info("Checkout completed",
		zap.Int("order_id", order.ID),
		zap.Int("user_id", userID),
		zap.Float64("total_price", order.TotalPrice),
	)
	span.SetAttributes(attribute.Int("order.id", order.ID))
	return &order, nil
}

type checkoutLine struct {
	ProductID int
	Quantity  int
	Price     float64
}

func readCartLines(ctx context.Context, tx *sql.Tx, cartID int) ([]checkoutLine, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY id",
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart lines: %w", err)
	}
	defer rows.Close()

	var lines []checkoutLine
	for rows.Next() {
		var line checkoutLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// stockFailure reports which product failed and how much stock remains.
// The surrounding transaction is rolled back by the caller's defer.
func (s *CheckoutService) stockFailure(ctx context.Context, productID, requested int) error {
	middleware.RecordCheckout("insufficient_stock")
	available := 0
	err := s.db.QueryRowContext(ctx,
		"SELECT stock FROM products WHERE id = $1",
		productID,
	).Scan(&available)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("Failed to read remaining stock", zap.Int("product_id", productID), zap.Error(err))
	}
	return &models.InsufficientStockError{
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

func validateShipping(info models.ShippingInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return &models.InvalidShippingAddressError{Reason: "recipient name is required"}
	}
	if strings.TrimSpace(info.Phone) == "" {
		return &models.InvalidShippingAddressError{Reason: "contact phone is required"}
	}
	if strings.TrimSpace(info.Address) == "" {
		return &models.InvalidShippingAddressError{Reason: "delivery address is required"}
	}
	return nil
}
