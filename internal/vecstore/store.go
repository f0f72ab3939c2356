// Package vecstore is the client for the vector index backed by
// PostgreSQL + pgvector.
//
// Two logical collections share one table, distinguished by a collection
// column: the document knowledge base and the rolling chat memory.
// Entries are write-once — every upsert uses a fresh UUID, so re-ingestion
// creates new rows rather than updating old ones.
package vecstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Collection names for the two vector-search namespaces.
const (
	// CollectionKnowledge holds embedded document chunks.
	CollectionKnowledge = "knowledge_base"

	// CollectionMemory holds embedded summaries of completed exchanges.
	CollectionMemory = "chat_memory"
)

// Per-call timeouts bounding worst-case latency against a slow database.
const (
	writeTimeout  = 10 * time.Second
	searchTimeout = 10 * time.Second
)

// Payload is the JSON document stored alongside each vector.
type Payload struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Hit is a single nearest-neighbor search result. Score is cosine
// similarity, higher is closer.
type Hit struct {
	ID      uuid.UUID
	Payload Payload
	Score   float64
}

// Querier is the subset of database operations the Store needs. It is
// satisfied by *pgxpool.Pool and pgx.Tx; tests supply a mock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertSQL = `INSERT INTO vector_entries (id, collection, embedding, payload)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`

const searchSQL = `SELECT id, payload, 1 - (embedding <=> $2) AS score
	FROM vector_entries
	WHERE collection = $1
	ORDER BY embedding <=> $2
	LIMIT $3`

// Store provides upsert-by-id and k-nearest-neighbor search over the
// vector index.
//
// Store is safe for concurrent use by multiple goroutines; the pgx pool
// handles connection management.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. Production callers pass a *pgxpool.Pool.
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Upsert writes one entry into the given collection. The id should be
// freshly generated by the caller; entries are never updated in place in
// normal operation.
func (s *Store) Upsert(ctx context.Context, collection string, id uuid.UUID, vector []float32, payload Payload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if _, err := s.db.Exec(ctx, upsertSQL, id, collection, pgvector.NewVector(vector), payloadJSON); err != nil {
		return fmt.Errorf("upserting entry %s into %q: %w", id, collection, err)
	}

	s.logger.Debug("upserted vector entry", "collection", collection, "id", id, "text_length", len(payload.Text))
	return nil
}

// Search returns up to limit entries of the collection nearest to the
// query vector, ordered nearest first by cosine distance.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, searchSQL, collection, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", collection, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			hit         Hit
			payloadJSON []byte
		)
		if err := rows.Scan(&hit.ID, &payloadJSON, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &hit.Payload); err != nil {
			return nil, fmt.Errorf("unmarshaling payload for %s: %w", hit.ID, err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	return hits, nil
}
