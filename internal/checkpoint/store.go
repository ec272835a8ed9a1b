package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arealhq/arealbot/internal/log"
)

// Querier defines the database operations the store needs. Defined here,
// by the consumer, so tests can swap in a mock.
type Querier interface {
	// GetCheckpoint returns the serialized history and last update time for
	// a thread. Returns pgx.ErrNoRows when the thread has no checkpoint.
	GetCheckpoint(ctx context.Context, threadID string) ([]byte, time.Time, error)

	// UpsertCheckpoint replaces the thread's checkpoint.
	UpsertCheckpoint(ctx context.Context, threadID string, history []byte) error

	// LockCheckpoint takes the row lock for a thread within the current
	// transaction. A missing row is not an error.
	LockCheckpoint(ctx context.Context, threadID string) error
}

// Store persists thread checkpoints in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool // nil in unit tests, disables transactions
	logger  log.Logger
}

// NewStore creates a checkpoint store. pool may be nil when the querier is
// a mock; Save then skips the transaction and row lock.
func NewStore(querier Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		querier: querier,
		pool:    pool,
		logger:  logger,
	}
}

// Load returns the state for a thread. A thread that has never been saved
// yields an empty state with no error.
func (s *Store) Load(ctx context.Context, threadID string) (State, error) {
	if threadID == "" {
		return State{}, fmt.Errorf("thread ID is required")
	}

	raw, updatedAt, err := s.querier.GetCheckpoint(ctx, threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{ThreadID: threadID}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: load thread %s: %v", ErrPersistence, threadID, err)
	}

	var history []Turn
	if err := json.Unmarshal(raw, &history); err != nil {
		return State{}, fmt.Errorf("%w: decode history for thread %s: %v", ErrPersistence, threadID, err)
	}

	return State{
		ThreadID:  threadID,
		History:   history,
		UpdatedAt: updatedAt,
	}, nil
}

// Save replaces the thread's checkpoint with the given state. The write
// runs inside a transaction that locks the existing row first, so two
// concurrent saves for the same thread serialize at the database too.
func (s *Store) Save(ctx context.Context, state State) error {
	if state.ThreadID == "" {
		return fmt.Errorf("thread ID is required")
	}

	raw, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("encode history for thread %s: %w", state.ThreadID, err)
	}

	if s.pool == nil {
		if err := s.querier.UpsertCheckpoint(ctx, state.ThreadID, raw); err != nil {
			return fmt.Errorf("%w: save thread %s: %v", ErrPersistence, state.ThreadID, err)
		}
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("checkpoint rollback", "error", err)
		}
	}()

	txQuerier := NewPgxQuerier(tx)
	if err := txQuerier.LockCheckpoint(ctx, state.ThreadID); err != nil {
		return fmt.Errorf("%w: lock thread %s: %v", ErrPersistence, state.ThreadID, err)
	}
	if err := txQuerier.UpsertCheckpoint(ctx, state.ThreadID, raw); err != nil {
		return fmt.Errorf("%w: save thread %s: %v", ErrPersistence, state.ThreadID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit thread %s: %v", ErrPersistence, state.ThreadID, err)
	}

	s.logger.Debug("checkpoint saved",
		"thread_id", state.ThreadID,
		"turns", len(state.History))
	return nil
}

// DBTX is the subset of pgx shared by pools and transactions, so PgxQuerier
// works both standalone and inside Save's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxQuerier implements Querier on a pgx pool or transaction.
type PgxQuerier struct {
	db DBTX
}

// NewPgxQuerier creates a Querier backed by db.
func NewPgxQuerier(db DBTX) *PgxQuerier {
	return &PgxQuerier{db: db}
}

// GetCheckpoint returns the serialized history and update time for a thread.
func (q *PgxQuerier) GetCheckpoint(ctx context.Context, threadID string) ([]byte, time.Time, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := q.db.QueryRow(ctx, `
		SELECT history, updated_at
		FROM checkpoints
		WHERE thread_id = $1`,
		threadID).Scan(&raw, &updatedAt)
	if err != nil {
		return nil, time.Time{}, err
	}
	return raw, updatedAt, nil
}

// UpsertCheckpoint replaces the thread's checkpoint row.
func (q *PgxQuerier) UpsertCheckpoint(ctx context.Context, threadID string, history []byte) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, history, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (thread_id) DO UPDATE SET
			history = EXCLUDED.history,
			updated_at = now()`,
		threadID, history)
	return err
}

// LockCheckpoint takes the row lock for a thread. No row is fine: the
// following upsert will create it, and the in-process lock already
// serializes first writers.
func (q *PgxQuerier) LockCheckpoint(ctx context.Context, threadID string) error {
	var id string
	err := q.db.QueryRow(ctx, `
		SELECT thread_id FROM checkpoints
		WHERE thread_id = $1
		FOR UPDATE`,
		threadID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
