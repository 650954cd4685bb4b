package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/fintera-brokerage/internal/models"
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that validates JWT tokens and attaches the
// caller as a models.Actor to the request context.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenString := ""

		if authHeader == "" {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization header is required",
				})
				return
			}
		} else {
			// Extract token from "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid authorization header format",
				})
				return
			}
			tokenString = parts[1]
		}

		claims, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)
		c.Set("claims", claims)

		ctx := models.WithActor(c.Request.Context(), models.Actor{
			ID:   claims.UserID,
			Role: models.Role(claims.Role),
		})
		ctx = models.WithRequestInfo(ctx, models.RequestInfo{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validateToken parses and validates a JWT token string
func validateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	switch models.Role(claims.Role) {
	case models.RoleAdmin, models.RoleAgent:
	default:
		return nil, errors.New("token has an unknown role")
	}

	return claims, nil
}

// IssueToken signs claims for userID. Used by the dev tooling and tests.
func IssueToken(secret, userID string, role models.Role, email string) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) string {
	return c.GetString("userID")
}

// GetUserRole extracts the user role from the Gin context
func GetUserRole(c *gin.Context) string {
	return c.GetString("userRole")
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *gin.Context) bool {
	return GetUserRole(c) == string(models.RoleAdmin)
}

// RequireAdmin returns a middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(string(models.RoleAdmin))
}

// RequireRole returns a middleware that requires specific roles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := GetUserRole(c)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "you do not have access to this resource",
		})
	}
}
