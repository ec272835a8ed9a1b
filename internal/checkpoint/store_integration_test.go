//go:build integration
// +build integration

package checkpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/testutil"
)

func TestStoreRoundTrip_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(NewPgxQuerier(db.Pool), db.Pool, log.NewNop())
	ctx := context.Background()

	state := State{
		ThreadID: "tg-1001",
		History: []Turn{
			{Speaker: SpeakerUser, Text: "how much is pumping a 3 m³ tank?", At: time.Now().UTC()},
			{Speaker: SpeakerAssistant, Text: "From 2500 per visit.", At: time.Now().UTC()},
		},
	}
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "tg-1001")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.History) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(loaded.History))
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set by the database")
	}
}

func TestStoreConcurrentSaves_Integration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(NewPgxQuerier(db.Pool), db.Pool, log.NewNop())
	locks := NewThreadLocks()
	ctx := context.Background()

	const turns = 20
	var wg sync.WaitGroup
	wg.Add(turns)
	for range turns {
		go func() {
			defer wg.Done()

			release := locks.Acquire("tg-2002")
			defer release()

			state, err := store.Load(ctx, "tg-2002")
			if err != nil {
				t.Errorf("Load() error = %v", err)
				return
			}
			state = state.Append(Turn{Speaker: SpeakerUser, Text: "ping", At: time.Now().UTC()})
			if err := store.Save(ctx, state); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := store.Load(ctx, "tg-2002")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(final.History) != turns {
		t.Errorf("history has %d turns after %d serialized saves, want %d",
			len(final.History), turns, turns)
	}
}
