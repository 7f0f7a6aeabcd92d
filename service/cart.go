package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/models"
)

// Catalog is the read side of the product collaborator used outside the
// checkout transaction (display prices, existence checks, invalidation).
type Catalog interface {
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	Invalidate(ctx context.Context, id int) error
}

type CartService struct {
	db      *sql.DB
	catalog Catalog
	logger  *zap.Logger
}

func NewCartService(db *sql.DB, catalog Catalog, logger *zap.Logger) *CartService {
	return &CartService{db: db, catalog: catalog, logger: logger}
}

// GetCart returns the user's cart. A user without a persisted cart gets an
// empty one; the row itself is created lazily on the first add.
func (s *CartService) GetCart(ctx context.Context, userID int) (*models.Cart, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CartService.GetCart")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID))

	var cart models.Cart
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1",
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, cart_id, product_id, quantity, price FROM cart_items WHERE cart_id = $1 ORDER BY id",
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart items: %w", err)
	}
	defer rows.Close()

	cart.Items = []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cart items: %w", err)
	}
	return &cart, nil
}

// AddItem upserts a line keyed by (cart, product): concurrent adds for the
// same product merge into one row with summed quantity via ON CONFLICT, so
// there is no read-then-write race. The captured price is display-only.
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity int) (*models.CartItem, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CartService.AddItem")
	defer span.End()
	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.Int("product_id", productID),
		attribute.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var cartID int
	err = s.db.QueryRowContext(ctx,
		"INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP RETURNING id",
		userID,
	).Scan(&cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure cart: %w", err)
	}

	var item models.CartItem
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, price) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		 RETURNING id, cart_id, product_id, quantity, price`,
		cartID, productID, quantity, product.Price,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	s.logger.Info("Cart item added",
		zap.Int("user_id", userID),
		zap.Int("product_id", productID),
		zap.Int("quantity", item.Quantity),
	)
	return &item, nil
}

// UpdateItem sets the quantity of a line the user owns. A quantity of zero
// or less removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID, quantity int) (*models.CartItem, error) {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CartService.UpdateItem")
	defer span.End()
	span.SetAttributes(attribute.Int("user_id", userID), attribute.Int("item_id", itemID))

	if quantity <= 0 {
		if err := s.RemoveItem(ctx, userID, itemID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var item models.CartItem
	err := s.db.QueryRowContext(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2
		 AND cart_id IN (SELECT id FROM carts WHERE user_id = $3)
		 RETURNING id, cart_id, product_id, quantity, price`,
		quantity, itemID, userID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "cart item", ID: itemID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return &item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int) error {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CartService.RemoveItem")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND cart_id IN (SELECT id FROM carts WHERE user_id = $2)",
		itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check removal: %w", err)
	}
	if affected == 0 {
		return &models.NotFoundError{Resource: "cart item", ID: itemID}
	}
	return nil
}

// Clear empties the cart but keeps the cart row.
func (s *CartService) Clear(ctx context.Context, userID int) error {
	ctx, span := otel.Tracer("shopcore").Start(ctx, "CartService.Clear")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)",
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
