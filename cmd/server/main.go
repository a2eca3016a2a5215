// Command server runs the vote lifecycle API: HTTP endpoints, the scheduled
// closure sweep, guide generation and notification fan-out.
//
// @title        Vote Backend API
// @version      1.0
// @description  Votes with scheduled closure, AI-generated guides and revote requests.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vote-backend/internal/ai"
	"github.com/tbourn/go-vote-backend/internal/cache"
	"github.com/tbourn/go-vote-backend/internal/config"
	"github.com/tbourn/go-vote-backend/internal/events"
	httpapi "github.com/tbourn/go-vote-backend/internal/http"
	"github.com/tbourn/go-vote-backend/internal/notify"
	"github.com/tbourn/go-vote-backend/internal/observability"
	"github.com/tbourn/go-vote-backend/internal/repo"
	"github.com/tbourn/go-vote-backend/internal/search"
	"github.com/tbourn/go-vote-backend/internal/services"
	"github.com/tbourn/go-vote-backend/internal/sysutil"
	"github.com/tbourn/go-vote-backend/internal/workers"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogging(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)
	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	background := workers.New("background", cfg.Background.Workers, cfg.Background.Queue)
	notifyPool := workers.New("notify", cfg.Notify.Workers, cfg.Notify.Queue)
	bus := events.NewBus(background)

	var c cache.Cache = cache.Noop{}
	var redisCache *cache.RedisCache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		} else {
			c, redisCache = rc, rc
		}
	}

	var meili *search.Meili
	if cfg.Search.MeiliURL != "" {
		meili = search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliAPIKey, cfg.Search.IndexUID)
	}
	searchSvc := search.NewService(meili, search.NewMemoryIndex())

	var email notify.EmailSender
	if cfg.SMTP.IsConfigured() {
		email = notify.NewSMTPSender(cfg.SMTP)
	}
	var push notify.PushSender
	if cfg.PushWebhookURL != "" {
		push = notify.NewWebhookPush(cfg.PushWebhookURL)
	}
	dispatcher := notify.NewDispatcher(notifyPool, db, email, push, notify.DBInApp{DB: db})

	eng := services.NewEngine(services.EngineDeps{
		DB:       db,
		Bus:      bus,
		Cache:    c,
		Search:   searchSvc,
		AI:       ai.New(cfg.AI),
		Notifier: dispatcher,
		Config:   cfg,
	})
	if err := eng.Propagator.Rebuild(ctx); err != nil {
		log.Warn().Err(err).Msg("initial search rebuild failed")
	}

	sched, err := services.NewScheduler(cfg.Scheduler, eng.Closure, eng.Propagator.Rebuild)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler setup failed")
	}
	sched.Start()

	r := gin.New()
	httpapi.RegisterRoutes(r, eng, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	// Handlers may still publish (guide created -> notify), so drain the bus
	// before closing the pools that run its subscribers.
	bus.Wait()
	if err := background.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("background pool shutdown")
	}
	if err := notifyPool.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notify pool shutdown")
	}
	searchSvc.Close()
	if redisCache != nil {
		_ = redisCache.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}
