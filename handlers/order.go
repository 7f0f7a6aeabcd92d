package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/middleware"
	"shopcore/service"
)

type OrderHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: middleware.UserIDFrom(c),
		Role:   middleware.RoleFrom(c),
	}
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "ListOrders")
	defer span.End()

	userID := middleware.UserIDFrom(c)
	orders, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	order, err := h.orders.GetByID(ctx, orderID, actorFrom(c))
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelRequest struct {
	Note string `json:"note"`
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "CancelOrder")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.orders.Cancel(ctx, orderID, actorFrom(c), req.Note)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
