package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/middleware"
	"shopcore/models"
	"shopcore/service"
)

type CartHandler struct {
	carts  *service.CartService
	logger *zap.Logger
}

func NewCartHandler(carts *service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "GetCart")
	defer span.End()

	userID := middleware.UserIDFrom(c)
	cart, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "AddCartItem")
	defer span.End()

	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(
		attribute.Int("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	userID := middleware.UserIDFrom(c)
	item, err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "UpdateCartItem")
	defer span.End()

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserIDFrom(c)
	item, err := h.carts.UpdateItem(ctx, userID, itemID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	if item == nil {
		// Quantity <= 0 removed the line.
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "RemoveCartItem")
	defer span.End()

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	userID := middleware.UserIDFrom(c)
	if err := h.carts.RemoveItem(ctx, userID, itemID); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "ClearCart")
	defer span.End()

	userID := middleware.UserIDFrom(c)
	if err := h.carts.Clear(ctx, userID); err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
