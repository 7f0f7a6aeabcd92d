package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// ConfirmReceipt settles a COD payment; safe to retry.
func (h *PaymentHandler) ConfirmReceipt(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "ConfirmPaymentReceipt")
	defer span.End()

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}
	span.SetAttributes(attribute.Int("order.id", orderID))

	payment, err := h.payments.ConfirmCODReceipt(ctx, orderID, actorFrom(c))
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

type gatewayCallbackRequest struct {
	OrderID       int    `json:"order_id" binding:"required"`
	TransactionID string `json:"transaction_id"`
	Succeeded     bool   `json:"succeeded"`
}

// GatewayCallback receives the external gateway's settlement verdict for a
// prepaid payment.
func (h *PaymentHandler) GatewayCallback(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "PaymentGatewayCallback")
	defer span.End()

	var req gatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(
		attribute.Int("order.id", req.OrderID),
		attribute.Bool("payment.succeeded", req.Succeeded),
	)

	payment, err := h.payments.ConfirmGatewayPayment(ctx, req.OrderID, req.TransactionID, req.Succeeded)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
