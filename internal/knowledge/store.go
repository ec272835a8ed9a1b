package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrBackend indicates a transport or backend failure of the vector store or
// the embedder. It is distinct from an empty result, which is a normal
// outcome and never an error.
var ErrBackend = errors.New("knowledge backend failure")

// searchTimeout bounds a single vector search round-trip.
const searchTimeout = 10 * time.Second

// Querier defines the database operations the Store needs.
// The interface is defined here, by the consumer, so tests can substitute a
// mock without a database.
type Querier interface {
	// UpsertChunk inserts or replaces a chunk row.
	UpsertChunk(ctx context.Context, chunk Chunk, embedding pgvector.Vector) error

	// SearchChunks returns up to limit chunks ordered by similarity to the
	// query embedding, with Score populated.
	SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Chunk, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int64, error)
}

// Store manages knowledge chunks with vector search.
// It generates embeddings via the configured embedder and delegates storage
// to the Querier. Safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a Store.
// logger may be nil, in which case slog.Default() is used.
func NewStore(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and upserts a chunk. Used by ingestion and tests.
// Chunks with an empty visibility tag set are rejected: such a chunk would be
// unreachable by every role and indicates broken ingestion input.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	if len(chunk.AllowedRoles) == 0 {
		return fmt.Errorf("chunk %q has no visibility tags", chunk.ID)
	}

	embedding, err := s.embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.ID, err)
	}

	if err := s.queries.UpsertChunk(ctx, chunk, embedding); err != nil {
		return fmt.Errorf("upserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "source", chunk.Source, "roles", chunk.AllowedRoles)
	return nil
}

// Search embeds the query and returns up to limit chunks ordered by
// similarity. No visibility filtering happens here; the Retriever owns that.
// Failures wrap ErrBackend.
func (s *Store) Search(ctx context.Context, query string, limit int32) ([]Chunk, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrBackend, err)
	}

	chunks, err := s.queries.SearchChunks(queryCtx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrBackend, err)
	}

	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.queries.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting chunks: %w", ErrBackend, err)
	}
	return n, nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// PgxQuerier implements Querier on a pgx connection pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier creates a Querier backed by the given pool.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

// UpsertChunk inserts or replaces a chunk row.
func (q *PgxQuerier) UpsertChunk(ctx context.Context, chunk Chunk, embedding pgvector.Vector) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO knowledge_chunks (id, content, source, allowed_roles, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			allowed_roles = EXCLUDED.allowed_roles,
			embedding = EXCLUDED.embedding`,
		chunk.ID, chunk.Text, chunk.Source, chunk.AllowedRoles, embedding)
	return err
}

// SearchChunks performs cosine-distance search ordered by similarity.
func (q *PgxQuerier) SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Chunk, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, content, source, allowed_roles, created_at,
		       1 - (embedding <=> $1) AS score
		FROM knowledge_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Text, &c.Source, &c.AllowedRoles, &c.CreatedAt, &c.Score); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return chunks, nil
}

// CountChunks returns the number of stored chunks.
func (q *PgxQuerier) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := q.pool.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks`).Scan(&n)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
