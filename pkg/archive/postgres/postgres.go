// Package postgres records generated report sections in a PostgreSQL table.
//
// The archive is an optional sink: runs with no DSN configured skip it
// entirely, and an archive failure never aborts a run.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iabouzeid/gmailscreener/pkg/api"
)

//go:embed 001_create_report_entries.sql
var migrationSQL string

const insertSQL = `
INSERT INTO report_entries
    (message_id, artifact_name, subject, sender, sent_date, amounts, expense_line_count, snippet)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (message_id, artifact_name) DO NOTHING`

// Config holds the archive configuration.
type Config struct {
	// DSN is a pgx connection string or URL.
	DSN string
	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Archiver writes report sections to PostgreSQL.
type Archiver struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and runs the schema migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migration: %w", err)
	}

	logger.Info("connected to archive database")
	return &Archiver{pool: pool, logger: logger}, nil
}

// Archive inserts one row per section, keyed by message and artifact so
// re-running the same report is idempotent.
func (a *Archiver) Archive(ctx context.Context, artifactName string, sections []api.Section) error {
	batch := &pgx.Batch{}
	for _, s := range sections {
		amounts := s.Amounts
		if amounts == nil {
			amounts = []string{}
		}
		batch.Queue(insertSQL,
			s.MessageID, artifactName, s.Subject, s.From, s.Date,
			amounts, len(s.ExpenseLines), s.Snippet,
		)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range sections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting report entry: %w", err)
		}
	}

	a.logger.Info("archived report entries", "artifact", artifactName, "count", len(sections))
	return nil
}

// Close releases the connection pool.
func (a *Archiver) Close() {
	a.pool.Close()
}
