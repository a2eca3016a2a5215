package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func TestRequestID_ReuseValidOrMint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/votes/:id", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name, in string
		keep     bool
	}{
		{"absent", "", false},
		{"valid", "rid-7f3a", true},
		{"spaces", "rid with spaces", false},
		{"newline", "rid\ninjected", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/votes/v1", nil)
			if tc.in != "" {
				req.Header.Set(strings.ToLower(HeaderXRequestID), tc.in)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			got := w.Header().Get(HeaderXRequestID)
			if got == "" || got != seen {
				t.Fatalf("header %q vs context %q", got, seen)
			}
			if (got == tc.in) != tc.keep {
				t.Fatalf("in=%q out=%q keep=%v", tc.in, got, tc.keep)
			}
		})
	}
}

func TestLogger_LevelsRouteAndFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Identity("tok"), Logger(RedactOptions{}))
	r.GET("/votes/:id", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		c.Status(http.StatusOK)
	})
	r.POST("/votes/:id/responses", func(c *gin.Context) {
		_ = c.Error(errBoom{})
		c.Status(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodGet, "/votes/v1?email=jane@example.com", nil)
	req.Header.Set(HeaderUserID, "u-42")
	req.Header.Set(HeaderAdminToken, "tok")
	req.Header.Set(HeaderXRequestID, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/votes/v2/responses", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("want 4 log lines, got %d:\n%s", len(lines), buf.String())
	}
	var svc, access, missing, failed map[string]any
	for i, dst := range []*map[string]any{&svc, &access, &missing, &failed} {
		if err := json.Unmarshal([]byte(lines[i]), dst); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
	}
	if svc["message"] != "from service" || svc["request_id"] != "rid-1" || svc["resource_id"] != "v1" {
		t.Fatalf("context logger lost request fields: %v", svc)
	}
	if access["level"] != "info" || access["path"] != "/votes/:id" || access["user_id"] != "u-42" || access["admin"] != true {
		t.Fatalf("access line: %v", access)
	}
	if q, _ := access["query"].(string); strings.Contains(q, "jane@example.com") || !strings.Contains(q, "[REDACTED:email]") {
		t.Fatalf("query not redacted: %q", q)
	}
	if missing["level"] != "warn" || missing["path"] != "/nowhere" || missing["query"] != nil {
		t.Fatalf("unmatched line: %v", missing)
	}
	if failed["level"] != "error" || failed["errors"] == nil || failed["status"] != float64(http.StatusConflict) {
		t.Fatalf("gin error line: %v", failed)
	}
}

func TestLogger_MarksReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), func(c *gin.Context) { c.Set(ctxKeyIdemReplay, true) }, Logger(RedactOptions{}))
	r.POST("/votes/:id/responses", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/votes/v1/responses", nil))

	if !strings.Contains(buf.String(), `"replayed":true`) {
		t.Fatalf("replay flag missing:\n%s", buf.String())
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestRecovery_BeforeAndAfterWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(RedactOptions{}), Recovery())
	r.GET("/early", func(c *gin.Context) { panic("kaboom") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/early", nil)
	req.Header.Set(HeaderXRequestID, "rid-p")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-p" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("envelope written after partial body: %q", w.Body.String())
	}

	out := buf.String()
	if strings.Count(out, "panic recovered") != 2 || !strings.Contains(out, `"request_id":"rid-p"`) {
		t.Fatalf("panic logs missing request fields:\n%s", out)
	}
}

func TestLoggerFrom_FallsBackToGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	LoggerFrom(c).Info().Msg("bare")
	if !strings.Contains(buf.String(), `"message":"bare"`) || strings.Contains(buf.String(), "request_id") {
		t.Fatalf("fallback logger output: %s", buf.String())
	}
}

func Test_truncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
		{"ψήφος", 3, "ψ…"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q,%d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
