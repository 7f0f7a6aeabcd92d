package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"shopcore/middleware"
	"shopcore/models"
	"shopcore/service"
)

type CheckoutHandler struct {
	checkout *service.CheckoutService
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout *service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

type checkoutRequest struct {
	ShippingName    string `json:"shipping_name" binding:"required"`
	ShippingPhone   string `json:"shipping_phone" binding:"required"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	ctx, span := otel.Tracer("shopcore").Start(c.Request.Context(), "Checkout")
	defer span.End()

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.UserIDFrom(c)
	span.SetAttributes(
		attribute.Int("user_id", userID),
		attribute.String("payment_method", req.PaymentMethod),
	)

	order, err := h.checkout.Checkout(ctx, userID, service.CheckoutRequest{
		Shipping: models.ShippingInfo{
			Name:    req.ShippingName,
			Phone:   req.ShippingPhone,
			Address: req.ShippingAddress,
		},
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err)
		return
	}

	span.SetAttributes(attribute.Int("order.id", order.ID))
	c.JSON(http.StatusCreated, order)
}
