// Package cache provides the product catalog cache: redis in front of the
// products table, with an injected clock and explicit invalidation instead
// of ambient global state.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopcore/circuitbreaker"
	"shopcore/models"
)

type Clock func() time.Time

type cachedProduct struct {
	Product  models.Product `json:"product"`
	CachedAt time.Time      `json:"cached_at"`
}

type Catalog struct {
	db     *sql.DB
	rdb    *redis.Client
	ttl    time.Duration
	clock  Clock
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

func NewCatalog(db *sql.DB, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Catalog {
	return &Catalog{
		db:     db,
		rdb:    rdb,
		ttl:    ttl,
		clock:  time.Now,
		cb:     circuitbreaker.New(5, 30*time.Second),
		logger: logger,
	}
}

// WithClock replaces the time source. Entries older than the TTL by this
// clock are treated as misses even if redis has not expired them yet.
func (c *Catalog) WithClock(clock Clock) *Catalog {
	c.clock = clock
	return c
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *Catalog) fresh(entry cachedProduct) bool {
	return c.clock().Sub(entry.CachedAt) <= c.ttl
}

// GetProduct returns the product from cache or falls back to the database.
// A missing product surfaces as NotFoundError.
func (c *Catalog) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
		if err == nil {
			var entry cachedProduct
			if jsonErr := json.Unmarshal(data, &entry); jsonErr == nil && c.fresh(entry) {
				return &entry.Product, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Catalog cache read failed", zap.Int("product_id", id), zap.Error(err))
		}
	}

	var product models.Product
	dbErr := c.cb.Execute(ctx, func() error {
		return c.db.QueryRowContext(ctx,
			"SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = $1",
			id,
		).Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
	})
	if dbErr != nil {
		if errors.Is(dbErr, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Resource: "product", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, dbErr)
	}

	c.store(ctx, &product)
	return &product, nil
}

func (c *Catalog) store(ctx context.Context, product *models.Product) {
	if c.rdb == nil {
		return
	}
	entry := cachedProduct{Product: *product, CachedAt: c.clock()}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productKey(product.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Catalog cache write failed", zap.Int("product_id", product.ID), zap.Error(err))
	}
}

// Invalidate drops the cached entry; called after checkout mutates stock.
func (c *Catalog) Invalidate(ctx context.Context, id int) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, productKey(id)).Err()
}
