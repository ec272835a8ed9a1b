package knowledge

import (
	"context"
	"log/slog"

	"github.com/arealhq/arealbot/internal/rbac"
)

// overfetchFactor controls how many candidates are pulled from the store
// before visibility filtering. The store cannot filter by role server-side,
// so retrieval over-fetches and filters in-process; a privileged role sees at
// most topK results, a restricted role may lose most candidates to the
// filter.
const overfetchFactor = 4

// Retriever performs role-filtered similarity retrieval.
// Default policy (top-k, score threshold) is fixed at construction;
// individual calls may override it with RetrieveOptions.
type Retriever struct {
	store          *Store
	topK           int
	scoreThreshold float64
	logger         *slog.Logger
}

// NewRetriever creates a Retriever with the given default policy.
func NewRetriever(store *Store, topK int, scoreThreshold float64, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:          store,
		topK:           topK,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

// Retrieve returns the ranked chunks visible to role for the given query.
//
// An empty result is a normal outcome ("no documents found"), returned as a
// nil slice with a nil error; the caller must disclose the gap to the user
// rather than fabricate an answer. Errors are returned only for backend
// failures and wrap ErrBackend.
func (r *Retriever) Retrieve(ctx context.Context, query string, role rbac.Role, opts ...RetrieveOption) ([]Chunk, error) {
	cfg := retrieveConfig{
		topK:           r.topK,
		scoreThreshold: r.scoreThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Safe conversion: topK is bounded by config validation.
	candidates, err := r.store.Search(ctx, query, int32(cfg.topK*overfetchFactor))
	if err != nil {
		return nil, err
	}

	visible := make([]Chunk, 0, cfg.topK)
	dropped := 0
	for _, c := range candidates {
		if !rbac.Visible(role, c.AllowedRoles) {
			dropped++
			continue
		}
		if c.Score < cfg.scoreThreshold {
			// Candidates are ordered by similarity; everything after the
			// first sub-threshold chunk is below threshold too.
			break
		}
		visible = append(visible, c)
		if len(visible) == cfg.topK {
			break
		}
	}

	r.logger.Debug("retrieved chunks",
		"role", role,
		"candidates", len(candidates),
		"visible", len(visible),
		"dropped_by_rbac", dropped,
	)

	if len(visible) == 0 {
		return nil, nil
	}
	return visible, nil
}
