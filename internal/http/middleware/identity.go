// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity. Authentication happens upstream
// (an edge proxy or gateway); the service trusts X-User-ID and grants the
// admin role only when X-Admin-Token matches the configured secret.
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers.
const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyAdmin  = "identity.admin"
)

// Identity stores the caller's user id and admin flag in the Gin context. An
// empty adminToken disables the admin role entirely.
func Identity(adminToken string) gin.HandlerFunc {
	secret := []byte(adminToken)
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		admin := false
		if len(secret) > 0 {
			if got := c.GetHeader(HeaderAdminToken); got != "" {
				admin = subtle.ConstantTimeCompare([]byte(got), secret) == 1
			}
		}
		c.Set(ctxKeyAdmin, admin)
		c.Next()
	}
}

// UserID returns the resolved user id, or "" for anonymous callers.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsAdmin reports whether the caller presented a valid admin token.
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyAdmin)
	b, _ := v.(bool)
	return b
}
