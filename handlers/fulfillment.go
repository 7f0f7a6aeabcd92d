package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/models"
	"shopcore/service"
)

type FulfillmentHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewFulfillmentHandler(orders *service.OrderService, logger *zap.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{orders: orders, logger: logger}
}

type updateStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	Note            string `json:"note"`
	ProofOfDelivery string `json:"proof_of_delivery"`
}

// UpdateStatus is the fulfillment surface: shippers advance an order through
// the delivery states, admins may drive any transition. The service layer
// enforces the role gate ahead of state legality.
func (h *FulfillmentHandler) UpdateStatus(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("order.to_status", string(status)),
	)

	order, err := h.orders.Transition(ctx, orderID, status, actorFrom(c), service.TransitionOptions{
		Note:            req.Note,
		ProofOfDelivery: req.ProofOfDelivery,
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
