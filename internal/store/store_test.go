package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/store"
	"github.com/raysh454/convotap/internal/testutil"
)

func newSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "convotap.db"), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(id, payload string) *model.Snapshot {
	return &model.Snapshot{
		ID:     id,
		TabID:  "T1",
		Source: model.SourceNetwork,
		Request: model.CapturedRequest{
			URL:     "https://chatgpt.com/backend-api/conversation",
			Method:  "POST",
			Payload: json.RawMessage(payload),
		},
		Response: model.CapturedResponse{
			Body: json.RawMessage(`"data: [DONE]"`),
		},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// runs the same contract against every implementation
func forEachStore(t *testing.T, fn func(t *testing.T, s store.SnapshotStore)) {
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, newSQLiteStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, store.NewMemoryStore())
	})
}

// ─── Contract ──────────────────────────────────────────────────────────

func TestStore_LatestEmpty(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s store.SnapshotStore) {
		_, err := s.Latest(context.Background())
		if !errors.Is(err, store.ErrNoSnapshot) {
			t.Fatalf("expected ErrNoSnapshot, got %v", err)
		}
	})
}

func TestStore_SaveOverwrites(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s store.SnapshotStore) {
		ctx := context.Background()
		if err := s.Save(ctx, sampleSnapshot("first", `{"x":1}`)); err != nil {
			t.Fatalf("Save first: %v", err)
		}
		if err := s.Save(ctx, sampleSnapshot("second", `{"x":2}`)); err != nil {
			t.Fatalf("Save second: %v", err)
		}

		got, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if got.ID != "second" {
			t.Errorf("expected latest snapshot 'second', got %q", got.ID)
		}
		if string(got.Request.Payload) != `{"x":2}` {
			t.Errorf("payload = %s", got.Request.Payload)
		}
		if !got.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
			t.Errorf("timestamp = %v", got.Timestamp)
		}
	})
}

func TestStore_PreservesKeyOrder(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s store.SnapshotStore) {
		ctx := context.Background()
		payload := `{"zeta":1,"alpha":{"y":true,"b":null},"mid":[3,2,1]}`
		if err := s.Save(ctx, sampleSnapshot("ordered", payload)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if string(got.Request.Payload) != payload {
			t.Errorf("payload = %s, want %s", got.Request.Payload, payload)
		}
	})
}

func TestStore_SaveNil(t *testing.T) {
	t.Parallel()
	forEachStore(t, func(t *testing.T, s store.SnapshotStore) {
		if err := s.Save(context.Background(), nil); err == nil {
			t.Fatal("expected error for nil snapshot")
		}
	})
}

// ─── SQLite specifics ──────────────────────────────────────────────────

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "convotap.db")
	logger := &testutil.DummyLogger{}

	s1, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Save(context.Background(), sampleSnapshot("kept", `null`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s1.Close()

	s2, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest after reopen: %v", err)
	}
	if got.ID != "kept" {
		t.Errorf("expected 'kept', got %q", got.ID)
	}
}

func TestNewSQLiteStore_Validation(t *testing.T) {
	t.Parallel()
	if _, err := store.NewSQLiteStore("", &testutil.DummyLogger{}); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"), nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestNew_Drivers(t *testing.T) {
	t.Parallel()
	logger := &testutil.DummyLogger{}

	mem, err := store.New(store.Config{Driver: store.DriverMemory}, logger)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*store.MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", mem)
	}

	sq, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "d.db")}, logger)
	if err != nil {
		t.Fatalf("default driver: %v", err)
	}
	defer sq.Close()
	if _, ok := sq.(*store.SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", sq)
	}

	if _, err := store.New(store.Config{Driver: "redis"}, logger); err == nil {
		t.Error("expected error for unknown driver")
	}
}
