// Package feedback records user ratings of assistant replies. It sits next
// to the conversation path, never on it: a feedback failure cannot affect
// a turn.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arealhq/arealbot/internal/log"
)

// ErrInvalidRating indicates a rating outside the 1..5 range.
var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Entry is one recorded rating.
type Entry struct {
	ID        uuid.UUID
	ThreadID  string
	TurnRef   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// Querier defines the database operations the store needs.
type Querier interface {
	InsertFeedback(ctx context.Context, e Entry) error
	ListFeedback(ctx context.Context, threadID string, limit int32) ([]Entry, error)
}

// Store records and lists feedback entries.
type Store struct {
	querier Querier
	logger  log.Logger
}

// NewStore creates a feedback store.
func NewStore(querier Querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, logger: logger}
}

// Record validates and persists one rating, returning the assigned ID.
func (s *Store) Record(ctx context.Context, threadID, turnRef string, rating int, comment string) (uuid.UUID, error) {
	if threadID == "" {
		return uuid.Nil, fmt.Errorf("thread ID is required")
	}
	if rating < 1 || rating > 5 {
		return uuid.Nil, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}

	entry := Entry{
		ID:       uuid.New(),
		ThreadID: threadID,
		TurnRef:  turnRef,
		Rating:   rating,
		Comment:  comment,
	}
	if err := s.querier.InsertFeedback(ctx, entry); err != nil {
		return uuid.Nil, fmt.Errorf("insert feedback: %w", err)
	}

	s.logger.Info("feedback recorded",
		"thread_id", threadID,
		"rating", rating)
	return entry.ID, nil
}

// List returns the most recent entries for a thread, newest first.
func (s *Store) List(ctx context.Context, threadID string, limit int32) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.querier.ListFeedback(ctx, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return entries, nil
}

// PgxQuerier implements Querier on a pgx connection pool.
type PgxQuerier struct {
	pool *pgxpool.Pool
}

// NewPgxQuerier creates a Querier backed by the given pool.
func NewPgxQuerier(pool *pgxpool.Pool) *PgxQuerier {
	return &PgxQuerier{pool: pool}
}

// InsertFeedback inserts one feedback row.
func (q *PgxQuerier) InsertFeedback(ctx context.Context, e Entry) error {
	_, err := q.pool.Exec(ctx, `
		INSERT INTO feedback (id, thread_id, turn_ref, rating, comment)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ThreadID, e.TurnRef, e.Rating, e.Comment)
	return err
}

// ListFeedback returns up to limit entries for a thread, newest first.
func (q *PgxQuerier) ListFeedback(ctx context.Context, threadID string, limit int32) ([]Entry, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, thread_id, turn_ref, rating, comment, created_at
		FROM feedback
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.TurnRef, &e.Rating, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return entries, nil
}
