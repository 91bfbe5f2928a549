package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// TestStore_Integration requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestStore_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, mongoURI, "voicemap_test", zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer func() {
		client.Database.Drop(ctx)
		client.Close(ctx)
	}()

	store, err := NewStore(ctx, client, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	t.Run("SessionLifecycle", func(t *testing.T) {
		if err := store.Create(ctx, entities.NewSession("s1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := store.SetActive(ctx, "s1", false); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
		got, err := store.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.IsActive {
			t.Errorf("session still active")
		}
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, repositories.ErrNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("TranscriptsGetSequentialIDs", func(t *testing.T) {
		first := &entities.Transcript{SessionID: "s1", Text: "one"}
		second := &entities.Transcript{SessionID: "s1", Text: "two"}
		for _, tr := range []*entities.Transcript{first, second} {
			if err := store.CreateTranscript(ctx, tr); err != nil {
				t.Fatalf("CreateTranscript() error = %v", err)
			}
		}
		if second.ID != first.ID+1 {
			t.Errorf("ids %d, %d are not sequential", first.ID, second.ID)
		}

		if err := store.MarkProcessed(ctx, []int64{first.ID}, time.Now()); err != nil {
			t.Fatalf("MarkProcessed() error = %v", err)
		}
		pending, err := store.UnprocessedTranscripts(ctx, "s1")
		if err != nil {
			t.Fatalf("UnprocessedTranscripts() error = %v", err)
		}
		if len(pending) != 1 || pending[0].ID != second.ID {
			t.Errorf("unprocessed = %+v", pending)
		}
	})

	t.Run("EraseSessionContent", func(t *testing.T) {
		mm := &entities.MindMap{SessionID: "s1", Nodes: []entities.Node{{ID: "a", Label: "A"}}, Edges: []entities.Edge{}}
		if err := store.CreateMindMap(ctx, mm); err != nil {
			t.Fatalf("CreateMindMap() error = %v", err)
		}
		if err := store.EraseSessionContent(ctx, "s1"); err != nil {
			t.Fatalf("EraseSessionContent() error = %v", err)
		}
		sum, err := store.SessionSummary(ctx, "s1")
		if err != nil {
			t.Fatalf("SessionSummary() error = %v", err)
		}
		if sum.TranscriptCount != 0 || sum.MindMapCount != 0 {
			t.Errorf("content survived erase: %+v", sum)
		}
	})
}
