package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"shopcore/events"
	"shopcore/models"
	"shopcore/service"
)

func setupPaymentRouter(t *testing.T, userID int, role models.Role) (*gin.Engine, sqlmock.Sqlmock, func()) {
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger)
	orders := service.NewOrderService(db, bus, logger)
	payments := service.NewPaymentService(db, orders, bus, logger)
	handler := NewPaymentHandler(payments, logger)

	router := gin.New()
	router.Use(testAuth(userID, role))
	router.POST("/payments/orders/:id/confirm-receipt", handler.ConfirmReceipt)
	router.POST("/payments/gateway/callback", handler.GatewayCallback)

	return router, mock, func() { db.Close() }
}

func TestPaymentHandler_ConfirmReceipt(t *testing.T) {
	router, mock, cleanup := setupPaymentRouter(t, 20, models.RoleShipper)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(orderQuery).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "status", "shipping_name", "shipping_phone", "shipping_address",
			"total_price", "status_note", "proof_of_delivery", "version", "created_at", "updated_at",
		}).AddRow(42, 7, models.OrderStatusDelivered, "Nguyen Van A", "0901234567", "1 Le Loi", 200000.0, nil, nil, 4, now, now))
	mock.ExpectQuery(paymentQuery).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "method", "status", "amount", "transaction_id", "paid_at", "created_at", "updated_at",
		}).AddRow(5, 42, models.PaymentMethodCOD, models.PaymentStatusPending, 200000.0, nil, nil, now, now))
	mock.ExpectExec("UPDATE payments SET status = ").
		WithArgs(models.PaymentStatusCompleted, sqlmock.AnyArg(), 42, models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/payments/orders/42/confirm-receipt", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payment models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &payment); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", payment.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("database expectations were not met: %v", err)
	}
}

func TestPaymentHandler_ConfirmReceipt_CustomerForbidden(t *testing.T) {
	router, _, cleanup := setupPaymentRouter(t, 7, models.RoleCustomer)
	defer cleanup()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/payments/orders/42/confirm-receipt", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPaymentHandler_GatewayCallback_MissingOrderID(t *testing.T) {
	router, _, cleanup := setupPaymentRouter(t, 0, models.RoleCustomer)
	defer cleanup()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/payments/gateway/callback", strings.NewReader(`{"succeeded":true}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPaymentHandler_GatewayCallback_Declined(t *testing.T) {
	router, mock, cleanup := setupPaymentRouter(t, 0, models.RoleCustomer)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(orderQuery).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "status", "shipping_name", "shipping_phone", "shipping_address",
			"total_price", "status_note", "proof_of_delivery", "version", "created_at", "updated_at",
		}).AddRow(42, 7, models.OrderStatusPending, "Nguyen Van A", "0901234567", "1 Le Loi", 200000.0, nil, nil, 1, now, now))
	mock.ExpectQuery(paymentQuery).WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "method", "status", "amount", "transaction_id", "paid_at", "created_at", "updated_at",
		}).AddRow(5, 42, models.PaymentMethodCreditCard, models.PaymentStatusPending, 200000.0, nil, nil, now, now))
	mock.ExpectExec("UPDATE payments SET status = ").
		WithArgs(models.PaymentStatusFailed, 42, models.PaymentStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/payments/gateway/callback",
		strings.NewReader(`{"order_id":42,"transaction_id":"","succeeded":false}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var payment models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &payment); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if payment.Status != models.PaymentStatusFailed {
		t.Errorf("expected FAILED, got %s", payment.Status)
	}
}
