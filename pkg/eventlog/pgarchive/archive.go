// Package pgarchive appends event streams to a PostgreSQL table. It is the
// engine behind eventlog.EngineArchive: every event becomes one row keyed by
// its insert ID, and purging a stream deletes its rows. The archive keeps a
// queryable history next to whatever cloud backend is in play.
package pgarchive

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evolvehq/evoinfra/pkg/errors"
	"github.com/evolvehq/evoinfra/pkg/eventlog"
	"github.com/evolvehq/evoinfra/pkg/logging"
)

// dbExecutor matches the subset of *pgxpool.Pool the sink uses.
type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Config holds the archive database settings.
type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`

	// Table receives the archived events. Lower-case identifier only.
	Table string `mapstructure:"table"`

	// MaxConns caps the connection pool.
	MaxConns int32 `mapstructure:"max_conns"`
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.Table == "" {
		cfg.Table = "event_archive"
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
}

// Validate checks the archive settings.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.ValidationFailure("host must not be empty")
	}
	if c.Database == "" {
		return errors.ValidationFailure("database must not be empty")
	}
	if c.Table != "" && !tableNamePattern.MatchString(c.Table) {
		return errors.ValidationFailure("table must be a lower-case identifier").
			WithDetail("table=" + c.Table)
	}
	return nil
}

// buildDSN constructs the PostgreSQL connection URL.
func buildDSN(cfg Config) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   cfg.Database,
	}
	q := u.Query()
	q.Set("sslmode", cfg.SSLMode)
	q.Set("pool_max_conns", fmt.Sprintf("%d", cfg.MaxConns))
	u.RawQuery = q.Encode()
	return u.String()
}

// ArchiveSink writes events to the archive table.
type ArchiveSink struct {
	cfg Config
	db  dbExecutor
	log logging.Logger
}

// NewArchiveSink connects to the archive database, verifies the connection
// and makes sure the archive table exists.
func NewArchiveSink(ctx context.Context, cfg Config, log logging.Logger) (*ArchiveSink, error) {
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("pgarchive")

	pool, err := pgxpool.New(ctx, buildDSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationFailure, "parse archive dsn")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, classify(err, "connect to archive database")
	}

	s := newArchiveSink(cfg, log, pool)
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("connected to event archive",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.Database),
		logging.String("table", cfg.Table),
	)
	return s, nil
}

// newArchiveSink wires a sink over an explicit executor seam.
func newArchiveSink(cfg Config, log logging.Logger, db dbExecutor) *ArchiveSink {
	applyDefaults(&cfg)
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &ArchiveSink{cfg: cfg, db: db, log: log}
}

// ensureSchema creates the archive table and its stream index when missing.
func (s *ArchiveSink) ensureSchema(ctx context.Context) error {
	table := pgx.Identifier{s.cfg.Table}.Sanitize()
	index := pgx.Identifier{s.cfg.Table + "_logger_idx"}.Sanitize()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		insert_id   TEXT PRIMARY KEY,
		logger      TEXT NOT NULL,
		app         TEXT NOT NULL,
		environment TEXT NOT NULL,
		severity    TEXT NOT NULL,
		name        TEXT NOT NULL,
		message     TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payload     JSONB NOT NULL DEFAULT '{}'::jsonb,
		recorded_at TIMESTAMPTZ NOT NULL
	)`, table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return classify(err, "create archive table")
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (logger, recorded_at)`, index, table)
	if _, err := s.db.Exec(ctx, idx); err != nil {
		return classify(err, "create archive index")
	}
	return nil
}

// Emit appends one event row. Replaying an insert ID that is already
// archived is a no-op, which makes redelivery harmless.
func (s *ArchiveSink) Emit(ctx context.Context, ev eventlog.Event) error {
	payload := ev.Fields.Normalize()
	if payload == nil {
		payload = map[string]interface{}{}
	}

	sql := fmt.Sprintf(`INSERT INTO %s
		(insert_id, logger, app, environment, severity, name, message, description, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (insert_id) DO NOTHING`,
		pgx.Identifier{s.cfg.Table}.Sanitize())

	_, err := s.db.Exec(ctx, sql,
		ev.InsertID,
		ev.Logger,
		ev.App,
		ev.Environment.String(),
		ev.Severity.String(),
		ev.Name,
		ev.Message,
		ev.Description,
		payload,
		ev.Time,
	)
	if err != nil {
		return classify(err, "archive event")
	}
	return nil
}

// Purge deletes every archived row of the named stream. A stream with no
// rows classifies as NOT_FOUND.
func (s *ArchiveSink) Purge(ctx context.Context, loggerName string) error {
	if loggerName == "" {
		return errors.ValidationFailure("logger name must not be empty")
	}

	sql := fmt.Sprintf(`DELETE FROM %s WHERE logger = $1`,
		pgx.Identifier{s.cfg.Table}.Sanitize())

	tag, err := s.db.Exec(ctx, sql, loggerName)
	if err != nil {
		return classify(err, "purge archived stream")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("no archived events for stream").
			WithDetail("logger=" + loggerName)
	}

	s.log.Info("purged archived stream",
		logging.String("logger", loggerName),
		logging.Int64("rows", tag.RowsAffected()),
	)
	return nil
}

// Close releases the connection pool.
func (s *ArchiveSink) Close() error {
	s.db.Close()
	return nil
}
