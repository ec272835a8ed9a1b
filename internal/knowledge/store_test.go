package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/pgvector/pgvector-go"

	"github.com/arealhq/arealbot/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	embeddings  []float32
	callCount   int
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}
	emb := m.embeddings
	if emb == nil {
		emb = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: emb}},
	}, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upsertErr error
	searchErr error
	countErr  error

	searchResult []Chunk
	countResult  int64

	upsertCalls int
	searchCalls int

	lastUpserted Chunk
	lastLimit    int32
}

func (m *mockQuerier) UpsertChunk(ctx context.Context, chunk Chunk, embedding pgvector.Vector) error {
	m.upsertCalls++
	m.lastUpserted = chunk
	return m.upsertErr
}

func (m *mockQuerier) SearchChunks(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Chunk, error) {
	m.searchCalls++
	m.lastLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResult, nil
}

func (m *mockQuerier) CountChunks(ctx context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countResult, nil
}

func TestStore_Add(t *testing.T) {
	tests := []struct {
		name        string
		chunk       Chunk
		embedErr    error
		returnEmpty bool
		upsertErr   error
		wantErr     bool
		wantUpserts int
	}{
		{
			name:        "successful add",
			chunk:       Chunk{ID: "c1", Text: "recycling rules", AllowedRoles: []string{"public"}},
			wantUpserts: 1,
		},
		{
			name:        "rejects chunk with no visibility tags",
			chunk:       Chunk{ID: "c2", Text: "orphan"},
			wantErr:     true,
			wantUpserts: 0,
		},
		{
			name:        "embedder failure",
			chunk:       Chunk{ID: "c3", Text: "x", AllowedRoles: []string{"hr"}},
			embedErr:    errors.New("quota exceeded"),
			wantErr:     true,
			wantUpserts: 0,
		},
		{
			name:        "empty embedding",
			chunk:       Chunk{ID: "c4", Text: "x", AllowedRoles: []string{"hr"}},
			returnEmpty: true,
			wantErr:     true,
			wantUpserts: 0,
		},
		{
			name:        "upsert failure",
			chunk:       Chunk{ID: "c5", Text: "x", AllowedRoles: []string{"hr"}},
			upsertErr:   errors.New("connection refused"),
			wantErr:     true,
			wantUpserts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			querier := &mockQuerier{upsertErr: tt.upsertErr}
			embedder := &mockEmbedder{embedErr: tt.embedErr, returnEmpty: tt.returnEmpty}
			store := NewStore(querier, embedder, log.NewNop())

			err := store.Add(context.Background(), tt.chunk)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
			if querier.upsertCalls != tt.wantUpserts {
				t.Errorf("upsert calls = %d, want %d", querier.upsertCalls, tt.wantUpserts)
			}
		})
	}
}

func TestStore_Search(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Text: "alpha", AllowedRoles: []string{"public"}, Score: 0.9},
		{ID: "b", Text: "beta", AllowedRoles: []string{"employee"}, Score: 0.8},
	}

	querier := &mockQuerier{searchResult: chunks}
	store := NewStore(querier, &mockEmbedder{}, log.NewNop())

	got, err := store.Search(context.Background(), "waste disposal", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search() returned %d chunks, want 2", len(got))
	}
	if querier.lastLimit != 10 {
		t.Errorf("limit = %d, want 10", querier.lastLimit)
	}
}

func TestStore_Search_BackendFailure(t *testing.T) {
	tests := []struct {
		name      string
		embedErr  error
		searchErr error
	}{
		{"embedder unreachable", errors.New("dial tcp: refused"), nil},
		{"store unreachable", nil, errors.New("dial tcp: refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			querier := &mockQuerier{searchErr: tt.searchErr}
			store := NewStore(querier, &mockEmbedder{embedErr: tt.embedErr}, log.NewNop())

			_, err := store.Search(context.Background(), "q", 5)
			if !errors.Is(err, ErrBackend) {
				t.Errorf("Search() error = %v, want ErrBackend", err)
			}
		})
	}
}
