package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name      string
		secret    string
		user, tok string
		wantUser  string
		wantAdmin bool
	}{
		{"anonymous", "root", "", "", "", false},
		{"user", "root", " u1 ", "", "u1", false},
		{"admin", "root", "ops", "root", "ops", true},
		{"wrong token", "root", "ops", "roo", "ops", false},
		{"admin disabled", "", "ops", "", "ops", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Identity(tc.secret))
			r.GET("/", func(c *gin.Context) {
				if got := UserID(c); got != tc.wantUser {
					t.Fatalf("UserID = %q; want %q", got, tc.wantUser)
				}
				if got := IsAdmin(c); got != tc.wantAdmin {
					t.Fatalf("IsAdmin = %v; want %v", got, tc.wantAdmin)
				}
				c.Status(http.StatusNoContent)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != "" {
				req.Header.Set(HeaderUserID, tc.user)
			}
			if tc.tok != "" {
				req.Header.Set(HeaderAdminToken, tc.tok)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusNoContent {
				t.Fatalf("status = %d", w.Code)
			}
		})
	}
}
