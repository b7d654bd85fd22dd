package middleware

import (
	"errors"
	"net/http"
	"strings"

	"orderfinance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by RequireTenant
const (
	ContextTenantID = "tenantID"
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

var errTenantClaim = errors.New("tenant_id claim is missing or invalid")

// Claims is the subset of token claims the API relies on.
type Claims struct {
	TenantID uuid.UUID
	UserID   string
	Role     string
}

// ParseToken validates an HMAC-signed token and extracts the tenant, subject and role claims.
func ParseToken(tokenString string, secret []byte) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenSignatureInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	rawTenant, _ := mapClaims["tenant_id"].(string)
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil || tenantID == uuid.Nil {
		return Claims{}, errTenantClaim
	}

	sub, _ := mapClaims.GetSubject()
	role, _ := mapClaims["role"].(string)
	return Claims{TenantID: tenantID, UserID: sub, Role: role}, nil
}

// bearerToken reads the token from the access_token cookie, falling back to the Authorization header.
func bearerToken(c *gin.Context) (string, string) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireTenant validates the JWT and scopes the request to the tenant named in its tenant_id claim.
func RequireTenant(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)

		c.Next()
	}
}

// RequireRole checks the role set by RequireTenant against allowedRoles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString(ContextUserRole)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// TenantID returns the tenant scoped by RequireTenant.
func TenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextTenantID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// UserID returns the token subject, empty for service tokens without one.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
