// Package postgres indexes completed audit reports in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/seo-audit/internal/audit"
)

const defaultTable = "audit_reports"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for the report index.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ReportIndex writes one row per completed job.
type ReportIndex struct {
	pool  execCloser
	table string
}

// NewReportIndex connects a pool using cfg.
func NewReportIndex(ctx context.Context, cfg Config) (*ReportIndex, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ReportIndex{pool: pool, table: table}, nil
}

// NewReportIndexWithPool builds an index on an existing pool.
func NewReportIndexWithPool(pool execCloser, table string) (*ReportIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ReportIndex{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ReportIndex) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the index table when it does not exist.
func (s *ReportIndex) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	job_id        TEXT PRIMARY KEY,
	job_type      TEXT NOT NULL,
	url           TEXT NOT NULL,
	overall_score INTEGER NOT NULL,
	total_issues  INTEGER NOT NULL,
	health_status TEXT NOT NULL,
	blob_uri      TEXT,
	digest        TEXT,
	completed_at  TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// IndexReport upserts the row for entry.JobID.
func (s *ReportIndex) IndexReport(ctx context.Context, entry audit.ReportEntry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("report index is not configured")
	}
	if entry.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	job_type,
	url,
	overall_score,
	total_issues,
	health_status,
	blob_uri,
	digest,
	completed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (job_id) DO UPDATE SET
	overall_score = EXCLUDED.overall_score,
	total_issues = EXCLUDED.total_issues,
	health_status = EXCLUDED.health_status,
	blob_uri = EXCLUDED.blob_uri,
	digest = EXCLUDED.digest,
	completed_at = EXCLUDED.completed_at`, s.table)

	args := []any{
		entry.JobID,
		string(entry.JobType),
		entry.URL,
		entry.OverallScore,
		entry.TotalIssues,
		string(entry.HealthStatus),
		nullable(entry.BlobURI),
		nullable(entry.Digest),
		entry.Completed,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("index report %s: %w", entry.JobID, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
