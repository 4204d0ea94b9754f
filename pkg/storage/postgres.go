package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishguard/phishguard/pkg/detection"
)

const detectionsSchema = `
CREATE TABLE IF NOT EXISTS detections (
	detection_id TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	final_verdict TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS detections_sender_idx ON detections (sender);
CREATE INDEX IF NOT EXISTS detections_created_at_idx ON detections (created_at DESC);
`

// PostgresStore persists detections as JSONB rows, for deployments where
// multiple analysts share one history.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, detectionsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ensuring schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, dc *detection.Context) error {
	payload, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("storage: marshaling detection: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO detections (detection_id, sender, final_verdict, created_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (detection_id) DO NOTHING`,
		dc.DetectionID, dc.Sender, string(dc.FinalVerdict), dc.CreatedAt, payload)
	if err != nil {
		return fmt.Errorf("storage: inserting detection: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, detectionID string) (*detection.Context, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload FROM detections
		WHERE detection_id = $1 OR detection_id LIKE $1 || '%'
		ORDER BY created_at DESC LIMIT 1`, detectionID)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: loading detection: %w", err)
	}
	return unmarshalPayload(payload)
}

func (s *PostgresStore) LoadAll(ctx context.Context, limit int) ([]*detection.Context, error) {
	query := `SELECT payload FROM detections ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryPayloads(ctx, query, args...)
}

func (s *PostgresStore) SearchBySender(ctx context.Context, sender string) ([]*detection.Context, error) {
	return s.queryPayloads(ctx, `
		SELECT payload FROM detections WHERE sender = $1 ORDER BY created_at DESC`, sender)
}

func (s *PostgresStore) SearchByURL(ctx context.Context, url string) ([]*detection.Context, error) {
	// Extracted URLs live in a JSONB array; expanded destinations in an
	// object keyed by the original URL.
	return s.queryPayloads(ctx, `
		SELECT payload FROM detections
		WHERE coalesce(payload->'extracted_urls', '[]'::jsonb) @> to_jsonb($1::text)
		   OR EXISTS (
			SELECT 1 FROM jsonb_each_text(coalesce(payload->'expanded_urls', '{}'::jsonb))
			WHERE value = $1)
		ORDER BY created_at DESC`, url)
}

func (s *PostgresStore) Statistics(ctx context.Context) (*Stats, error) {
	all, err := s.LoadAll(ctx, 0)
	if err != nil {
		return nil, err
	}
	return buildStats(all), nil
}

func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM detections WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("storage: cleaning up detections: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryPayloads(ctx context.Context, query string, args ...any) ([]*detection.Context, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: querying detections: %w", err)
	}
	defer rows.Close()

	var out []*detection.Context
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		dc, err := unmarshalPayload(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func unmarshalPayload(payload []byte) (*detection.Context, error) {
	var dc detection.Context
	if err := json.Unmarshal(payload, &dc); err != nil {
		return nil, fmt.Errorf("storage: parsing payload: %w", err)
	}
	return &dc, nil
}
