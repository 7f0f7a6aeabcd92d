package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"shopcore/models"
)

const (
	ContextUserID = "auth_user_id"
	ContextRole   = "auth_role"
)

func jwtSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your-secret-key-change-in-production")
}

// AuthRequired verifies the bearer token issued by the auth service and
// places the caller's user id and role into the request context. Role and
// state checks downstream never trust what the UI claims.
func AuthRequired(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return jwtSecret(), nil
		})
		if err != nil || !token.Valid {
			logger.Warn("Rejected token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		rawUserID, ok := claims["user_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token missing user_id"})
			return
		}
		role, _ := claims["role"].(string)
		if role == "" {
			role = string(models.RoleCustomer)
		}

		c.Set(ContextUserID, int(rawUserID))
		c.Set(ContextRole, models.Role(role))
		c.Next()
	}
}

// RequireRole restricts a route to the given roles. The service layer
// enforces its own role gate as well; this just fails fast at the edge.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := RoleFrom(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
	}
}

func UserIDFrom(c *gin.Context) int {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(int); ok {
			return id
		}
	}
	return 0
}

func RoleFrom(c *gin.Context) models.Role {
	if v, ok := c.Get(ContextRole); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return models.RoleCustomer
}
