package timescale

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectionState tracks the lifecycle of the store's single connection pool.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config carries the connection parameters the store needs. Validation of the
// raw configuration happens in bootstrap before this struct is built.
type Config struct {
	DatabaseURL    string
	MaxConns       int32
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
}

// Store owns the Postgres/TimescaleDB connection pool for the whole process.
// It is built once by the composition root and passed by handle to everything
// that needs the database, including the health probes.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
	cfg   Config
	log   *slog.Logger

	mu    sync.RWMutex
	state ConnectionState
}

// Info is the best-effort backend description returned by Describe.
type Info struct {
	ServerVersion    string
	TimescaleVersion string
}

// Connect opens and validates the connection pool, then runs the idempotent
// schema bootstrap. A connect or ping failure is fatal and returned to the
// caller; bootstrap conflicts are downgraded to warnings inside Bootstrap.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}

	s := &Store{cfg: cfg, log: log.With("module", "timescale", "layer", "adapter"), state: StateConnecting}
	s.log.InfoContext(ctx, "timescale connect started",
		"operation", "connect",
		"outcome", "start",
	)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("connect timescale: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		s.setState(StateFailed)
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
		sqlDB.SetMaxIdleConns(int(cfg.MaxConns) / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		s.setState(StateFailed)
		return nil, fmt.Errorf("ping timescale: %w", err)
	}

	s.db = db
	s.sqlDB = sqlDB
	s.setState(StateConnected)
	s.log.InfoContext(ctx, "timescale connect completed",
		"operation", "connect",
		"outcome", "success",
	)
	return s, nil
}

// Bootstrap asserts the two schema artifacts the service depends on: the
// timescaledb extension and the market_data hypertable, in that order. Every
// step is idempotent and every failure is a warning; the service stays usable
// on a plain Postgres without the time-series capability.
func (s *Store) Bootstrap(ctx context.Context) {
	for _, step := range bootstrapSteps() {
		outcome := s.runBootstrapStep(ctx, step)
		s.log.InfoContext(ctx, "bootstrap step finished",
			"operation", "bootstrap",
			"step", step.name,
			"outcome", outcome,
		)
	}
}

type bootstrapStep struct {
	name       string
	statements []string
}

// bootstrapSteps returns the ordered schema assertions. Extension enablement
// must come first: create_hypertable does not exist without it.
func bootstrapSteps() []bootstrapStep {
	return []bootstrapStep{
		{
			name: "extension-enable",
			statements: []string{
				`CREATE EXTENSION IF NOT EXISTS timescaledb`,
			},
		},
		{
			name: "hypertable-create",
			statements: []string{
				`CREATE TABLE IF NOT EXISTS market_data (
					time     TIMESTAMPTZ      NOT NULL,
					symbol   TEXT             NOT NULL,
					interval TEXT             NOT NULL,
					open     DOUBLE PRECISION,
					high     DOUBLE PRECISION,
					low      DOUBLE PRECISION,
					close    DOUBLE PRECISION,
					volume   DOUBLE PRECISION
				)`,
				`SELECT create_hypertable('market_data', 'time', if_not_exists => TRUE)`,
			},
		},
	}
}

func (s *Store) runBootstrapStep(ctx context.Context, step bootstrapStep) string {
	for _, stmt := range step.statements {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			outcome := classifyBootstrapError(err)
			s.log.WarnContext(ctx, "bootstrap step degraded",
				"operation", "bootstrap",
				"step", step.name,
				"outcome", outcome,
				"error", err.Error(),
			)
			return outcome
		}
	}
	return "applied"
}

// classifyBootstrapError separates re-run conflicts from a backend that lacks
// the time-series capability. Both are non-fatal; the label only drives logs.
func classifyBootstrapError(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "already exists") || strings.Contains(msg, "already a hypertable") {
		return "already-present"
	}
	return "skipped"
}

// IsHealthy issues a minimal side-effect-free round trip. It never panics and
// never returns an error: any failure, including a timeout, is false. This is
// the single liveness primitive the probe set builds on.
func (s *Store) IsHealthy(ctx context.Context) (healthy bool) {
	defer func() {
		if recover() != nil {
			healthy = false
		}
	}()

	s.mu.RLock()
	sqlDB := s.sqlDB
	s.mu.RUnlock()
	if sqlDB == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	var one int
	if err := sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return false
	}
	return one == 1
}

// Describe reports the backend version and, when installed, the timescaledb
// extension version. Absence of the extension is not an error.
func (s *Store) Describe(ctx context.Context) Info {
	var info Info
	if s.db == nil {
		return info
	}
	_ = s.db.WithContext(ctx).Raw("SELECT version()").Scan(&info.ServerVersion).Error
	_ = s.db.WithContext(ctx).
		Raw("SELECT extversion FROM pg_extension WHERE extname = 'timescaledb'").
		Scan(&info.TimescaleVersion).Error
	return info
}

// Close releases the pool exactly once. A release error must not block
// shutdown, so it is logged and swallowed.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	sqlDB := s.sqlDB
	s.sqlDB = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if sqlDB == nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.log.WarnContext(ctx, "timescale close failed",
			"operation", "close",
			"outcome", "failure",
			"error", err.Error(),
		)
		return
	}
	s.log.InfoContext(ctx, "timescale closed",
		"operation", "close",
		"outcome", "success",
	)
}

// DB exposes the gorm handle for the domain repositories that will live on top
// of the hypertable.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// State returns the current lifecycle state.
func (s *Store) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
