package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"shopcore/models"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func setupAuthRouter(t *testing.T) (*gin.Engine, *int, *models.Role) {
	gin.SetMode(gin.TestMode)
	var gotUserID int
	var gotRole models.Role
	router := gin.New()
	router.Use(AuthRequired(zaptest.NewLogger(t)))
	router.GET("/probe", func(c *gin.Context) {
		gotUserID = UserIDFrom(c)
		gotRole = RoleFrom(c)
		c.Status(http.StatusOK)
	})
	return router, &gotUserID, &gotRole
}

func TestAuthRequired_MissingToken(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_MalformedToken(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	router, gotUserID, gotRole := setupAuthRouter(t)

	token := signToken(t, jwt.MapClaims{
		"user_id": 7,
		"role":    "shipper",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if *gotUserID != 7 {
		t.Errorf("expected user_id 7, got %d", *gotUserID)
	}
	if *gotRole != models.RoleShipper {
		t.Errorf("expected shipper role, got %s", *gotRole)
	}
}

func TestAuthRequired_ExpiredToken(t *testing.T) {
	router, _, _ := setupAuthRouter(t)

	token := signToken(t, jwt.MapClaims{
		"user_id": 7,
		"role":    "customer",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequired_DefaultsRoleToCustomer(t *testing.T) {
	router, gotUserID, gotRole := setupAuthRouter(t)

	token := signToken(t, jwt.MapClaims{
		"user_id": 9,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if *gotUserID != 9 || *gotRole != models.RoleCustomer {
		t.Errorf("expected user 9 with customer role, got %d %s", *gotUserID, *gotRole)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, 7)
		c.Set(ContextRole, models.RoleCustomer)
	})
	router.GET("/admin-only", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/customer-ok", RequireRole(models.RoleCustomer, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin-only", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for customer on admin route, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/customer-ok", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for allowed role, got %d", w.Code)
	}
}
