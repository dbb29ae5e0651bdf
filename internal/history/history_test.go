package history

import (
	"context"
	"testing"
	"time"
)

func TestOpenSeedsGreeting(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	log, err := Open(context.Background(), store, "conv-1", LogConfig{Greeting: "Hi! How can I help?"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msgs := log.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(msgs))
	}
	if msgs[0].Role != RoleAssistant || msgs[0].Content != "Hi! How can I help?" {
		t.Errorf("greeting = %+v", msgs[0])
	}

	// The greeting must also be persisted.
	stored, err := store.Load(context.Background(), "conv-1", time.Time{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored = %d messages, want 1", len(stored))
	}
}

func TestOpenResumesFreshConversation(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	if err := store.Append(ctx, "conv-1",
		NewMessage(RoleUser, "hello"),
		NewMessage(RoleAssistant, "hi there"),
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	log, err := Open(ctx, store, "conv-1", LogConfig{Greeting: "greeting"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msgs := log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" {
		t.Errorf("first message = %q, want hello", msgs[0].Content)
	}
}

func TestOpenDiscardsStaleConversation(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	old := NewMessage(RoleUser, "ancient")
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	if err := store.Append(ctx, "conv-1", old); err != nil {
		t.Fatalf("Append: %v", err)
	}

	log, err := Open(ctx, store, "conv-1", LogConfig{Greeting: "fresh start"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msgs := log.Messages()
	if len(msgs) != 1 || msgs[0].Content != "fresh start" {
		t.Fatalf("messages = %+v, want only the greeting", msgs)
	}

	// Stale rows must be gone from the store too.
	stored, err := store.Load(ctx, "conv-1", time.Time{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, m := range stored {
		if m.Content == "ancient" {
			t.Error("stale message survived Open")
		}
	}
}

func TestLogTrimsToTurnCap(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	log, err := Open(ctx, store, "conv-1", LogConfig{MaxTurns: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := log.AddUserTurn(ctx, "question"); err != nil {
			t.Fatalf("AddUserTurn: %v", err)
		}
		if err := log.AddAssistantTurn(ctx, "answer"); err != nil {
			t.Fatalf("AddAssistantTurn: %v", err)
		}
	}

	if got := len(log.Messages()); got != 4 {
		t.Errorf("len(messages) = %d, want 4 (2 turns)", got)
	}
}

func TestLogTurns(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	log, err := Open(ctx, store, "conv-1", LogConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.AddUserTurn(ctx, "hello"); err != nil {
		t.Fatalf("AddUserTurn: %v", err)
	}
	if err := log.AddAssistantTurn(ctx, "hi"); err != nil {
		t.Fatalf("AddAssistantTurn: %v", err)
	}

	turns := log.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if string(turns[0].Role) != string(RoleUser) || turns[1].Content != "hi" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestLogReset(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	ctx := context.Background()
	log, err := Open(ctx, store, "conv-1", LogConfig{Greeting: "hello"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := len(log.Messages()); got != 0 {
		t.Errorf("len(messages) = %d after reset, want 0", got)
	}
	stored, _ := store.Load(ctx, "conv-1", time.Time{})
	if len(stored) != 0 {
		t.Errorf("stored = %d messages after reset, want 0", len(stored))
	}
}
