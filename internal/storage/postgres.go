// Package storage is an optional pgvector-backed store of extracted feature
// vectors. When enabled, every sample that survives dataset assembly is
// recorded under its training run, so runs can be compared and individual
// samples inspected with nearest-neighbor queries. The training pipeline
// itself never depends on it.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/agrisphere/leafclass/internal/features"
)

// FeatureStore writes feature vectors for one training run.
type FeatureStore struct {
	pool  *pgxpool.Pool
	runID uuid.UUID
}

// SampleMatch is one nearest-neighbor result.
type SampleMatch struct {
	Path       string
	Class      string
	Similarity float64
}

// Open connects to the database and registers a new training run.
func Open(ctx context.Context, dsn, runName string) (*FeatureStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to feature store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping feature store: %w", err)
	}

	s := &FeatureStore{pool: pool, runID: uuid.New()}
	_, err = pool.Exec(ctx,
		"INSERT INTO runs (id, name, created_at) VALUES ($1, $2, $3)",
		s.runID, runName, time.Now())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("register training run: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *FeatureStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// RunID returns the id of the run this store writes under.
func (s *FeatureStore) RunID() uuid.UUID {
	return s.runID
}

// Add stores one extracted sample. It satisfies dataset.VectorSink.
func (s *FeatureStore) Add(ctx context.Context, path, class string, vec []float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO samples (run_id, path, class, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.runID, path, class, pgvector.NewVector(toFloat32(vec)), time.Now())
	if err != nil {
		return fmt.Errorf("store sample %q: %w", path, err)
	}
	return nil
}

// SimilarSamples returns the stored samples of this run closest to vec by
// cosine distance.
func (s *FeatureStore) SimilarSamples(ctx context.Context, vec []float64, limit int) ([]SampleMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, class, 1 - (embedding <=> $1) AS similarity
		FROM samples
		WHERE run_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(toFloat32(vec)), s.runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar samples: %w", err)
	}
	defer rows.Close()

	var matches []SampleMatch
	for rows.Next() {
		var m SampleMatch
		if err := rows.Scan(&m.Path, &m.Class, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar sample: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// InitSchema creates the feature store schema if it does not exist.
func InitSchema(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to feature store: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	_, err = conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS samples (
			id SERIAL PRIMARY KEY,
			run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			class VARCHAR(255) NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL
		);
	`, features.Len))
	if err != nil {
		return fmt.Errorf("create feature store schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS idx_samples_run_id ON samples(run_id);
		CREATE INDEX IF NOT EXISTS idx_samples_embedding ON samples
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`)
	if err != nil {
		return fmt.Errorf("create feature store indexes: %w", err)
	}
	return nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
