package chathistory

import (
	"context"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, kv KV, limits Limits, hooks *HookRegistry) *Store {
	t.Helper()

	s, err := New(Config{
		KV:     kv,
		Limits: limits,
		Logger: testLogger(),
		Hooks:  hooks,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	t.Run("requires a storage medium", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Fatal("expected error without KV")
		}
	})

	t.Run("starts with a seeded thread and current pointer", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)

		threads := s.Threads()
		if len(threads) != 1 {
			t.Fatalf("expected 1 thread, got: %d", len(threads))
		}
		if s.CurrentID() != threads[0].ID {
			t.Error("expected the seeded thread to be current")
		}
	})
}

func TestCreateThread(t *testing.T) {
	t.Run("prepends and makes current", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)

		created := s.CreateThread()

		threads := s.Threads()
		if len(threads) != 2 {
			t.Fatalf("expected 2 threads, got: %d", len(threads))
		}
		if threads[0].ID != created.ID {
			t.Error("expected new thread to be first")
		}
		if s.CurrentID() != created.ID {
			t.Error("expected new thread to be current")
		}
	})

	t.Run("evicts the oldest thread over the ceiling", func(t *testing.T) {
		var evicted []Thread
		hooks := NewHookRegistry().WithThreadEvicted(func(dropped []Thread) {
			evicted = append(evicted, dropped...)
		})

		s := newTestStore(t, NewMemoryKV(), Limits{MaxThreads: 3}, hooks)
		seeded := s.Threads()[0]

		s.CreateThread()
		s.CreateThread()
		s.CreateThread()

		if got := len(s.Threads()); got != 3 {
			t.Fatalf("expected 3 threads, got: %d", got)
		}
		if len(evicted) != 1 {
			t.Fatalf("expected 1 evicted thread, got: %d", len(evicted))
		}
		if evicted[0].ID != seeded.ID {
			t.Error("expected the oldest thread to be evicted")
		}
	})
}

func TestDeleteThread(t *testing.T) {
	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)

		s.DeleteThread("nope")
		if len(s.Threads()) != 1 {
			t.Error("expected collection unchanged")
		}
	})

	t.Run("deleting the current thread promotes the first remaining", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		a := s.CreateThread()
		b := s.CreateThread() // current, first in display order

		s.DeleteThread(b.ID)

		if s.CurrentID() != a.ID {
			t.Errorf("expected %s to become current, got: %s", a.ID, s.CurrentID())
		}
	})

	t.Run("deleting the last thread seeds a fresh one", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		only := s.Threads()[0]

		s.DeleteThread(only.ID)

		threads := s.Threads()
		if len(threads) != 1 {
			t.Fatalf("expected 1 thread, got: %d", len(threads))
		}
		if threads[0].ID == only.ID {
			t.Error("expected a newly seeded thread, not the deleted one")
		}
		if threads[0].Messages[0].Content != DefaultGreeting {
			t.Error("expected the fresh thread to carry the greeting")
		}
		if s.CurrentID() != threads[0].ID {
			t.Error("expected the fresh thread to be current")
		}
	})
}

func TestRenameThread(t *testing.T) {
	t.Run("overwrites the title", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		s.RenameThread(id, "Groceries budget")

		th, _ := s.Thread(id)
		if th.Title != "Groceries budget" {
			t.Errorf("expected renamed title, got: %q", th.Title)
		}
		if th.UpdatedAt < th.CreatedAt {
			t.Error("expected updatedAt to be refreshed")
		}
	})

	t.Run("rejects whitespace-only titles", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		for _, title := range []string{"", "   ", "\t\n"} {
			s.RenameThread(id, title)
		}

		th, _ := s.Thread(id)
		if th.Title != DefaultTitle {
			t.Errorf("expected title unchanged, got: %q", th.Title)
		}
	})
}

func TestAppendMessage(t *testing.T) {
	t.Run("appends and derives the title from the first user message", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		s.AppendMessage(id, Message{Role: RoleUser, Content: "How much did I spend on coffee?"})

		th, _ := s.Thread(id)
		if len(th.Messages) != 2 {
			t.Fatalf("expected 2 messages, got: %d", len(th.Messages))
		}
		if th.Messages[1].ID == "" {
			t.Error("expected a generated message id")
		}
		if th.Title != "How much did I spend on coffee?" {
			t.Errorf("expected derived title, got: %q", th.Title)
		}
	})

	t.Run("truncates long derived titles", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		long := strings.Repeat("spend ", 20)
		s.AppendMessage(id, Message{Role: RoleUser, Content: long})

		th, _ := s.Thread(id)
		if got := len([]rune(th.Title)); got != 40 {
			t.Errorf("expected 40-rune title, got: %d runes", got)
		}
	})

	t.Run("assistant messages never set the title", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		s.AppendMessage(id, Message{Role: RoleAssistant, Content: "Here is your summary"})

		th, _ := s.Thread(id)
		if th.Title != DefaultTitle {
			t.Errorf("expected placeholder title, got: %q", th.Title)
		}
	})

	t.Run("keeps an explicit rename", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		id := s.Threads()[0].ID

		s.RenameThread(id, "Bills")
		s.AppendMessage(id, Message{Role: RoleUser, Content: "water bill"})

		th, _ := s.Thread(id)
		if th.Title != "Bills" {
			t.Errorf("expected explicit title kept, got: %q", th.Title)
		}
	})

	t.Run("unknown thread is a no-op", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		s.AppendMessage("nope", Message{Role: RoleUser, Content: "hello"})

		if len(s.Threads()[0].Messages) != 1 {
			t.Error("expected no message appended")
		}
	})
}

func TestStorePersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("state survives a flush and reload", func(t *testing.T) {
		kv := NewMemoryKV()

		s := newTestStore(t, kv, Limits{}, nil)
		created := s.CreateThread()
		s.AppendMessage(created.ID, Message{Role: RoleUser, Content: "rent for March"})

		if outcome := s.Flush(ctx); outcome != SaveFull {
			t.Fatalf("expected SaveFull, got: %s", outcome)
		}

		reloaded := newTestStore(t, kv, Limits{}, nil)
		if reloaded.CurrentID() != created.ID {
			t.Error("expected current thread to survive reload")
		}

		th, ok := reloaded.Thread(created.ID)
		if !ok {
			t.Fatal("expected created thread to survive reload")
		}
		if th.Title != "rent for March" {
			t.Errorf("expected derived title to survive, got: %q", th.Title)
		}
	})

	t.Run("degraded saves are reported through hooks", func(t *testing.T) {
		var outcomes []SaveOutcome
		hooks := NewHookRegistry().WithSaveDegraded(func(o SaveOutcome) {
			outcomes = append(outcomes, o)
		})

		// Too small for even a single seeded thread.
		s := newTestStore(t, NewBoundedMemoryKV(100), Limits{}, hooks)
		s.Flush(ctx)

		if len(outcomes) == 0 {
			t.Fatal("expected a degraded-save notification")
		}
		if outcomes[0] != SaveCleared {
			t.Errorf("expected SaveCleared, got: %s", outcomes[0])
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		if err := s.Close(); err != nil {
			t.Fatalf("first close: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
	})
}

func TestStoreImport(t *testing.T) {
	t.Run("replaces the collection", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		s.CreateThread()

		donor := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		donor.RenameThread(donor.Threads()[0].ID, "Imported chat")
		data, err := donor.Export()
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}

		if err := s.Import(data); err != nil {
			t.Fatalf("import failed: %v", err)
		}

		threads := s.Threads()
		if len(threads) != 1 {
			t.Fatalf("expected 1 imported thread, got: %d", len(threads))
		}
		if threads[0].Title != "Imported chat" {
			t.Errorf("expected imported title, got: %q", threads[0].Title)
		}
		if s.CurrentID() != threads[0].ID {
			t.Error("expected first imported thread to be current")
		}
	})

	t.Run("surfaces invalid input", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)
		before := s.Threads()

		if err := s.Import([]byte(`{"not":"an array"}`)); err != ErrInvalidImport {
			t.Fatalf("expected ErrInvalidImport, got: %v", err)
		}
		if len(s.Threads()) != len(before) {
			t.Error("expected collection unchanged after failed import")
		}
	})

	t.Run("an empty import seeds a fresh thread", func(t *testing.T) {
		s := newTestStore(t, NewMemoryKV(), Limits{}, nil)

		if err := s.Import([]byte("[]")); err != nil {
			t.Fatalf("import failed: %v", err)
		}
		threads := s.Threads()
		if len(threads) != 1 {
			t.Fatalf("expected 1 thread, got: %d", len(threads))
		}
		if threads[0].Messages[0].Content != DefaultGreeting {
			t.Error("expected a freshly seeded thread")
		}
	})
}
