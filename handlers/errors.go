package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopcore/models"
)

// respondError maps the typed error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error and is not leaked to clients.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError
	var stockErr *models.InsufficientStockError
	var emptyErr *models.CartEmptyError
	var shippingErr *models.InvalidShippingAddressError
	var transitionErr *models.InvalidStateTransitionError
	var roleErr *models.UnauthorizedRoleError
	var conflictErr *models.ConcurrencyConflictError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &emptyErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": emptyErr.Error()})
	case errors.As(err, &shippingErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": shippingErr.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          transitionErr.Error(),
			"current_status": transitionErr.From,
			"legal_next":     transitionErr.LegalNext,
		})
	case errors.As(err, &roleErr):
		c.JSON(http.StatusForbidden, gin.H{"error": roleErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error()})
	default:
		logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
