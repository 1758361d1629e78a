// Package store keeps an optional history of script and batch runs in
// PostgreSQL. The rest of the system never requires it; it is wired in only
// when a DSN is configured.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is applied by Init. Idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
  run_id      uuid PRIMARY KEY,
  kind        text NOT NULL,
  name        text NOT NULL,
  status      text NOT NULL,
  started_at  timestamptz NOT NULL DEFAULT now(),
  finished_at timestamptz,
  result      jsonb NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Init creates the runs table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// CreateRun records the start of a script or batch execution and returns its
// run ID.
func (s *Store) CreateRun(ctx context.Context, kind, name string) (string, error) {
	runID := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, kind, name, status)
		VALUES ($1,$2,$3,$4)
	`, runID, kind, name, StatusRunning)
	if err != nil {
		return "", err
	}
	return runID, nil
}

// FinishRun marks a run finished with its final status and result payload.
func (s *Store) FinishRun(ctx context.Context, runID, status string, resultJSON []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET status=$2, finished_at=now(), result=$3::jsonb
		WHERE run_id=$1
	`, runID, status, jsonOrEmpty(resultJSON))
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, kind, name, status, started_at, finished_at, result
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Name, &r.Status, &r.StartedAt, &r.FinishedAt, &r.ResultJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func jsonOrEmpty(b []byte) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}
