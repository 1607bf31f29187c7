// Package identity verifies the caller's JWT once at the boundary and hands
// a typed identity down the stack. Nothing below the middleware ever
// re-interprets raw token contents.
package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleCitizen = "citizen"
	RoleStaff   = "staff"
)

const contextKey = "identity"

// Identity is the verified caller: an opaque owner id plus a role claim.
type Identity struct {
	OwnerID string
	Role    string
}

// Claims is the token payload this service accepts.
type Claims struct {
	OwnerID string `json:"uid"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens with a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier from the signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates the token string and extracts the identity.
func (v *Verifier) Parse(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.OwnerID == "" || claims.Role == "" {
		return nil, errors.New("missing identity claims")
	}
	return &Identity{OwnerID: claims.OwnerID, Role: claims.Role}, nil
}

// Middleware authenticates the request and stores the identity in the gin
// context. requiredRole rejects callers with any other role.
func (v *Verifier) Middleware(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		ident, err := v.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		if requiredRole != "" && ident.Role != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
			return
		}

		c.Set(contextKey, ident)
		c.Next()
	}
}

// FromContext returns the identity stored by the middleware.
func FromContext(c *gin.Context) (*Identity, bool) {
	val, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	ident, ok := val.(*Identity)
	return ident, ok
}
