package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-vote-backend/internal/domain"
)

type poolLimits struct {
	maxOpen, maxIdle int
	idle, lifetime   time.Duration
}

var (
	postgresPool = poolLimits{maxOpen: 25, maxIdle: 10, idle: 5 * time.Minute, lifetime: 30 * time.Minute}
	sqlitePool   = poolLimits{maxOpen: 10, maxIdle: 10, idle: 5 * time.Minute, lifetime: 30 * time.Minute}
)

// sqlitePragmas are applied by the driver on every pooled connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// zerologWriter routes GORM's slow-query and error lines into the process
// logger. Unique violations are an expected outcome ("already voted") and go
// to debug.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...any) {
	level := zerolog.WarnLevel
	for _, a := range args {
		if err, ok := a.(error); ok && isDuplicate(err) {
			level = zerolog.DebugLevel
			break
		}
	}
	log.WithLevel(level).Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(zerologWriter{}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}
}

// Open connects using the DSN scheme: postgres:// and postgresql:// select
// PostgreSQL, sqlite://path or a bare path selects SQLite. Queries are traced
// through the OpenTelemetry GORM plugin.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty database url")
	}
	open := OpenSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		open = OpenPostgres
	} else {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("gorm tracing: %w", err)
	}
	return db, nil
}

// OpenPostgres opens a PostgreSQL pool.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	return db, applyPool(db, postgresPool)
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must already exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(withPragmas(path)), gormConfig())
	if err != nil {
		return nil, err
	}
	return db, applyPool(db, sqlitePool)
}

func withPragmas(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func applyPool(db *gorm.DB, p poolLimits) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idle)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	return nil
}

// AutoMigrate creates or updates every table the engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Vote{},
		&domain.Option{},
		&domain.VoteResponse{},
		&domain.Guide{},
		&domain.RevoteRequest{},
		&domain.AIUsageQuota{},
		&domain.Notification{},
		&domain.UserContact{},
		&domain.Idempotency{},
	)
}
