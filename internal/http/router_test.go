package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/domain"
	"github.com/tbourn/go-vote-backend/internal/http/middleware"
	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		RateRPS:         100,
		RateBurst:       50,
		VoteDefaultDays: 7,
		IdempotencyTTL:  time.Hour,
		AI:              config.AIConfig{Timeout: time.Second, DailyQuota: 3},
		Security:        config.SecurityConfig{AdminToken: "admin-secret"},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	eng := services.NewEngine(services.EngineDeps{DB: newTestDB(t), Config: cfg})
	RegisterRoutes(r, eng, cfg)
	return r
}

func send(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := send(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = send(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w := send(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := send(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w := send(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newTestRouter(t, cfg)

	w := send(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r := newTestRouter(t, cfg)

	w := send(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/votes/{id}/responses") {
		t.Fatalf("swagger doc -> %d", w.Code)
	}
}

func TestVoteFlow_EndToEnd(t *testing.T) {
	r := newTestRouter(t, testConfig())
	owner := map[string]string{middleware.HeaderUserID: "owner"}

	w := send(r, http.MethodPost, "/api/v1/votes",
		`{"question":"Best pizza topping?","category":"food","options":["Cheese","Pepperoni"]}`, owner)
	if w.Code != http.StatusCreated {
		t.Fatalf("create vote -> %d %s", w.Code, w.Body.String())
	}
	var v domain.Vote
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil || len(v.Options) != 2 {
		t.Fatalf("vote body: %+v err=%v", v, err)
	}
	path := "/api/v1/votes/" + v.ID + "/responses"
	body := `{"option_id":"` + v.Options[1].ID + `"}`

	voter := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderIdempotencyKey: "try-1"}
	if w := send(r, http.MethodPost, path, body, voter); w.Code != http.StatusCreated {
		t.Fatalf("first response -> %d %s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPost, path, body, voter)
	if w.Code != http.StatusOK || w.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay -> %d %s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPost, path, body, map[string]string{middleware.HeaderUserID: "u1"})
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "already voted") {
		t.Fatalf("second vote -> %d %s", w.Code, w.Body.String())
	}

	w = send(r, http.MethodGet, "/api/v1/votes/"+v.ID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get vote -> %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	var view services.VoteView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil || view.Participants != 1 {
		t.Fatalf("view: %+v err=%v", view, err)
	}
	if w := send(r, http.MethodGet, "/api/v1/votes/"+v.ID, "", map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("conditional get -> %d", w.Code)
	}
}

func TestAdminRoutes_TokenAndNoStore(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := send(r, http.MethodPost, "/api/v1/admin/closures/run", "", map[string]string{middleware.HeaderUserID: "u1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-admin -> %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("admin responses must not be cached, got %q", w.Header().Get("Cache-Control"))
	}

	admin := map[string]string{middleware.HeaderUserID: "root", middleware.HeaderAdminToken: "admin-secret"}
	w = send(r, http.MethodPost, "/api/v1/admin/closures/run", "", admin)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"closed":0`) {
		t.Fatalf("admin run -> %d %s", w.Code, w.Body.String())
	}

	w = send(r, http.MethodGet, "/api/v1/ai/quota", "", map[string]string{middleware.HeaderUserID: "u1"})
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("quota -> %d cache=%q", w.Code, w.Header().Get("Cache-Control"))
	}
}

func TestRegisterRoutes_AdminDisabledWithoutToken(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AdminToken = ""
	r := newTestRouter(t, cfg)

	hdr := map[string]string{middleware.HeaderUserID: "root", middleware.HeaderAdminToken: ""}
	if w := send(r, http.MethodGet, "/api/v1/admin/revotes", "", hdr); w.Code != http.StatusForbidden {
		t.Fatalf("admin must be disabled, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := send(r, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
