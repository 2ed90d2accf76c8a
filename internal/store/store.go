package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides the PostgreSQL persistence layer for scan results and
// scheduled tasks. Scan results are written twice: an upsert into scan_latest
// keyed by kind, and an append into scan_history that is never updated.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Bootstrap creates the schema if it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scan_latest (
            kind       TEXT PRIMARY KEY,
            id         TEXT NOT NULL,
            ts         TIMESTAMPTZ NOT NULL,
            target_url TEXT NOT NULL,
            payload    JSONB NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS scan_history (
            id         TEXT PRIMARY KEY,
            kind       TEXT NOT NULL,
            ts         TIMESTAMPTZ NOT NULL,
            target_url TEXT NOT NULL,
            payload    JSONB NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_scan_history_kind_ts ON scan_history (kind, ts)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
            id             TEXT PRIMARY KEY,
            title          TEXT NOT NULL,
            description    TEXT NOT NULL DEFAULT '',
            kind           TEXT NOT NULL,
            target_url     TEXT NOT NULL,
            scheduled_date TEXT NOT NULL,
            scheduled_time TEXT NOT NULL,
            recurrence     TEXT NOT NULL,
            status         TEXT NOT NULL,
            created_at     TIMESTAMPTZ NOT NULL
        )`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	s.log.Debug("Schema bootstrap complete.")
	return nil
}

// SaveScan records a completed scan: it replaces the latest result for the
// scan's kind and appends to the immutable history, atomically.
func (s *Store) SaveScan(ctx context.Context, result *schemas.ScanResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	ts := result.Timestamp.UTC()

	_, err = tx.Exec(ctx, `
        INSERT INTO scan_latest (kind, id, ts, target_url, payload)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (kind) DO UPDATE SET
            id = EXCLUDED.id,
            ts = EXCLUDED.ts,
            target_url = EXCLUDED.target_url,
            payload = EXCLUDED.payload`,
		string(result.Kind), result.ID, ts, result.TargetURL, result.Payload)
	if err != nil {
		return fmt.Errorf("failed to upsert latest scan: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO scan_history (id, kind, ts, target_url, payload)
        VALUES ($1, $2, $3, $4, $5)`,
		result.ID, string(result.Kind), ts, result.TargetURL, result.Payload)
	if err != nil {
		return fmt.Errorf("failed to append scan history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LatestScan returns the most recent result of the given kind, or ErrNotFound
// if that kind has never been scanned.
func (s *Store) LatestScan(ctx context.Context, kind schemas.ScanKind) (*schemas.ScanResult, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT id, kind, ts, target_url, payload
        FROM scan_latest
        WHERE kind = $1`, string(kind))

	result, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scan: %w", err)
	}
	return result, nil
}

// ScansInRange returns all historical results with from <= ts < to, oldest first.
func (s *Store) ScansInRange(ctx context.Context, from, to time.Time) ([]schemas.ScanResult, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, kind, ts, target_url, payload
        FROM scan_history
        WHERE ts >= $1 AND ts < $2
        ORDER BY ts ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	defer rows.Close()

	var results []schemas.ScanResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}

// scanResult reads one scan-result row regardless of whether it came from
// Query or QueryRow. The kind column scans into a plain string first; typed
// string columns do not scan directly.
func scanResult(row pgx.Row) (*schemas.ScanResult, error) {
	var result schemas.ScanResult
	var kind string
	err := row.Scan(&result.ID, &kind, &result.Timestamp, &result.TargetURL, &result.Payload)
	if err != nil {
		return nil, err
	}
	result.Kind = schemas.ScanKind(kind)
	return &result, nil
}

// ClearScans removes the latest result and all history for the given kind.
func (s *Store) ClearScans(ctx context.Context, kind schemas.ScanKind) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM scan_latest WHERE kind = $1`, string(kind)); err != nil {
		return fmt.Errorf("failed to clear latest scan: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM scan_history WHERE kind = $1`, string(kind)); err != nil {
		return fmt.Errorf("failed to clear scan history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
