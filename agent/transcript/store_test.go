package transcript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	contractx "github.com/abhaygunhalkar/insurance-agents/agent/contract"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(context.Background(), Config{Path: filepath.Join(t.TempDir(), "transcripts.db")})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndReadBack(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	entries := []contractx.TranscriptEntry{
		{ThreadID: "t1", Role: "user", Content: "what is term life?", At: at},
		{ThreadID: "t1", Role: "assistant", AgentID: "support", Content: "Term life lasts a fixed period.", At: at.Add(time.Second)},
		{ThreadID: "t2", Role: "user", Content: "unrelated thread", At: at},
	}
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.ByThread(ctx, "t1")
	if err != nil {
		t.Fatalf("ByThread() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" {
		t.Fatalf("insertion order not preserved: %+v", got)
	}
	if got[1].AgentID != "support" {
		t.Fatalf("agent id lost: %+v", got[1])
	}
	if got[1].Content != "Term life lasts a fixed period." {
		t.Fatalf("content not stored verbatim: %q", got[1].Content)
	}
}

func TestAppendRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.Append(context.Background(), contractx.TranscriptEntry{ThreadID: "t1", Role: "user", Content: "  "})
	if !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}
}

func TestByThreadEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	got, err := store.ByThread(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ByThread() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("entries = %d", len(got))
	}
}
