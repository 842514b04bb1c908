package chathistory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// titleMaxRunes is the character limit for titles derived from the
// first user message.
const titleMaxRunes = 40

// Store is the public surface of the conversation store. It owns the
// authoritative in-memory thread collection and the current-thread
// pointer for the lifetime of the process; the persisted copy trails it
// through asynchronous, coalesced saves. Persistence failures degrade
// silently (logged, surfaced only through hooks) because in-memory
// state stays authoritative until the next load.
type Store struct {
	gateway *Gateway
	limits  Limits
	logger  *slog.Logger
	hooks   *HookRegistry

	mu        sync.Mutex
	threads   []Thread // newest-first for display
	currentID string
	closed    bool

	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

// New creates a store, loading persisted state from the configured
// medium. A missing or corrupt record yields a single freshly seeded
// thread, never an empty store.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Store{
		gateway: NewGateway(cfg.KV, cfg.Limits, cfg.Logger),
		limits:  cfg.Limits,
		logger:  cfg.Logger,
		hooks:   cfg.Hooks,
		dirty:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	ctx := context.Background()
	s.threads = s.gateway.Load(ctx)
	s.currentID = s.gateway.CurrentThreadID(ctx)
	if _, ok := s.findLocked(s.currentID); !ok {
		s.currentID = s.threads[0].ID
	}

	s.wg.Add(1)
	go s.saveLoop()

	return s, nil
}

// saveLoop is the single background writer. The dirty channel has
// capacity one, so rapid successive mutations coalesce into one write
// of the latest full state.
func (s *Store) saveLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			s.saveNow(context.Background())
		}
	}
}

// scheduleSave marks the store dirty without blocking the mutator.
func (s *Store) scheduleSave() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// saveNow snapshots the current state and persists it synchronously.
func (s *Store) saveNow(ctx context.Context) SaveOutcome {
	s.mu.Lock()
	threads := make([]Thread, len(s.threads))
	copy(threads, s.threads)
	currentID := s.currentID
	s.mu.Unlock()

	if err := s.gateway.SetCurrentThreadID(ctx, currentID); err != nil {
		s.logger.Warn("persisting current thread id failed", "error", err)
	}

	outcome := s.gateway.Save(ctx, threads)
	if outcome.Degraded() {
		s.logger.Warn("persistence degraded", "outcome", outcome.String())
		s.hooks.notifySaveDegraded(outcome)
	}
	return outcome
}

// Flush persists the current state synchronously. Mutations normally
// persist in the background; Flush exists for shutdown and tests.
func (s *Store) Flush(ctx context.Context) SaveOutcome {
	return s.saveNow(ctx)
}

// Close flushes pending state and stops the background writer.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	s.saveNow(context.Background())
	return nil
}

// CreateThread creates a new seeded thread, makes it current, and
// returns it. The new thread is prepended so display order stays
// newest-first. If the store is over its thread ceiling afterwards, the
// least recently updated threads are evicted permanently.
func (s *Store) CreateThread() Thread {
	t := NewThread()

	s.mu.Lock()
	s.threads = append([]Thread{t}, s.threads...)
	s.currentID = t.ID
	dropped := s.evictLocked()
	s.mu.Unlock()

	s.hooks.notifyThreadEvicted(dropped)
	s.scheduleSave()
	return t
}

// DeleteThread removes a thread. Deleting the current thread promotes
// the first remaining thread; deleting the last thread seeds a fresh
// one so the store is never empty. Deleting an unknown id is a no-op.
func (s *Store) DeleteThread(id string) {
	s.mu.Lock()
	idx, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return
	}

	s.threads = append(s.threads[:idx], s.threads[idx+1:]...)

	if len(s.threads) == 0 {
		t := NewThread()
		s.threads = []Thread{t}
		s.currentID = t.ID
	} else if s.currentID == id {
		s.currentID = s.threads[0].ID
	}
	s.mu.Unlock()

	s.scheduleSave()
}

// RenameThread overwrites a thread's title. Empty or whitespace-only
// titles are silently ignored, as are unknown ids.
func (s *Store) RenameThread(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	s.mu.Lock()
	idx, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.threads[idx].Title = title
	s.threads[idx].UpdatedAt = nowMillis()
	s.mu.Unlock()

	s.scheduleSave()
}

// AppendMessage appends a message to a thread. A missing message ID is
// generated. While the thread still carries the placeholder title, the
// first non-empty user message becomes the title, truncated to 40
// characters. When the storage medium is near its limit, incoming
// images are compressed immediately rather than waiting for save-time
// downsampling.
func (s *Store) AppendMessage(threadID string, msg Message) {
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}

	if len(msg.Images) > 0 && s.gateway.NearLimit(context.Background()) {
		for i, img := range msg.Images {
			msg.Images[i] = Downsample(img, s.limits.ImageMaxDim, s.limits.ImageQuality)
		}
	}

	s.mu.Lock()
	idx, ok := s.findLocked(threadID)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("append to unknown thread", "threadId", threadID)
		return
	}

	t := &s.threads[idx]
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = nowMillis()

	if t.Title == DefaultTitle && msg.Role == RoleUser {
		if content := strings.TrimSpace(msg.Content); content != "" {
			t.Title = truncateRunes(content, titleMaxRunes)
		}
	}
	s.mu.Unlock()

	s.scheduleSave()
}

// Threads returns a snapshot of the thread collection, newest-first.
func (s *Store) Threads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Thread, len(s.threads))
	copy(out, s.threads)
	return out
}

// Thread returns a thread by id.
func (s *Store) Thread(id string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.findLocked(id)
	if !ok {
		return Thread{}, false
	}
	return s.threads[idx], true
}

// CurrentID returns the id of the current thread.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// SetCurrent makes the given thread current. Unknown ids are ignored.
func (s *Store) SetCurrent(id string) {
	s.mu.Lock()
	if _, ok := s.findLocked(id); !ok {
		s.mu.Unlock()
		return
	}
	s.currentID = id
	s.mu.Unlock()

	s.scheduleSave()
}

// Export serializes the full thread collection as pretty-printed JSON,
// with no trimming or size bounding.
func (s *Store) Export() ([]byte, error) {
	return s.gateway.ExportAll(s.Threads())
}

// Import replaces the thread collection with parsed exported data. The
// first imported thread becomes current; an empty import seeds a fresh
// thread. Non-array input yields ErrInvalidImport.
func (s *Store) Import(data []byte) error {
	threads, err := s.gateway.ImportAll(data)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		threads = []Thread{NewThread()}
	}

	s.mu.Lock()
	s.threads = threads
	s.currentID = threads[0].ID
	dropped := s.evictLocked()
	s.mu.Unlock()

	s.hooks.notifyThreadEvicted(dropped)
	s.scheduleSave()
	return nil
}

// Usage reports the approximate bytes consumed in the storage medium.
func (s *Store) Usage(ctx context.Context) int64 {
	return s.gateway.Usage(ctx)
}

// findLocked returns the index of a thread by id. Callers hold s.mu.
func (s *Store) findLocked(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i := range s.threads {
		if s.threads[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// evictLocked drops least-recently-updated threads until the collection
// fits the thread ceiling, preserving display order of the survivors.
// Callers hold s.mu; returned threads are gone for good.
func (s *Store) evictLocked() []Thread {
	var dropped []Thread
	for len(s.threads) > s.limits.MaxThreads {
		// <= prefers the later display position on equal timestamps,
		// which is the older thread in newest-first ordering.
		oldest := 0
		for i := range s.threads {
			if s.threads[i].UpdatedAt <= s.threads[oldest].UpdatedAt {
				oldest = i
			}
		}
		dropped = append(dropped, s.threads[oldest])
		s.threads = append(s.threads[:oldest], s.threads[oldest+1:]...)
	}

	if len(dropped) > 0 {
		if _, ok := s.findLocked(s.currentID); !ok {
			s.currentID = s.threads[0].ID
		}
	}
	return dropped
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
