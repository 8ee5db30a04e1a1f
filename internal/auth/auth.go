package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"

	contextKeyIdentity = "auth_identity"
)

// Identity is what the auth collaborator asserts about the caller:
// who they are, whether they are an admin, and whether their hostel
// profile has been verified.
type Identity struct {
	StudentID string
	Role      string
	Verified  bool
}

// ParseToken verifies an HMAC-signed bearer token and extracts the
// identity claims.
func ParseToken(secret, tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("missing subject claim")
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleStudent
	}
	if role != RoleStudent && role != RoleAdmin {
		return nil, errors.New("unknown role claim")
	}

	verified, _ := claims["verified"].(bool)

	return &Identity{StudentID: sub, Role: role, Verified: verified}, nil
}

// Middleware authenticates the request from its bearer token and stores
// the identity in the gin context. 401 on any failure.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		ident, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(contextKeyIdentity, ident)
		c.Next()
	}
}

// RequireVerified gates operations that need a verified student profile,
// notably lock acquisition and allocation requests.
func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := FromContext(c)
		if ident == nil || !ident.Verified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile not verified"})
			return
		}
		c.Next()
	}
}

// RequireAdmin gates the admin surface.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := FromContext(c)
		if ident == nil || ident.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// FromContext returns the authenticated identity, or nil if the request
// did not pass through Middleware.
func FromContext(c *gin.Context) *Identity {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return nil
	}
	ident, _ := v.(*Identity)
	return ident
}
