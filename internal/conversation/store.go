// Package conversation implements the Conversation Store (C4): an
// in-process, keyed registry of ConversationThreads with turn-cap and TTL
// eviction, directly adapting the teacher's internal/session.Store.
package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// minCleanupInterval prevents a degenerate ticker interval, same floor the
// teacher's store.go applies to its TTL.
const minCleanupInterval = time.Millisecond

// Turn is one message in a ConversationThread (spec.md §3).
type Turn struct {
	Role      string // "user" or "assistant"
	Content   string
	ToolName  string
	ModelName string // set for assistant turns
	Files     []string
	Images    []string
	Timestamp time.Time
	Tokens    *TokenAccounting // nil if not applicable (e.g. user turns)
}

// TokenAccounting is the optional per-turn token usage attached to assistant
// turns.
type TokenAccounting struct {
	InputTokens  int
	OutputTokens int
}

// Thread is a UUID-keyed multi-turn conversation spanning tool invocations
// (spec.md §3 ConversationThread).
type Thread struct {
	ID             string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	InitialTool    string
	InitialModel   string
	Turns          []Turn
	FilesEverSeen  map[string]bool
	ImagesEverSeen map[string]bool

	// mu guards this thread only; two concurrent callers operating on
	// different threads never contend (spec.md §5), unlike the teacher's
	// single store-wide sync.RWMutex.
	mu sync.Mutex
}

// ErrExpired is returned by Get when the thread's TTL has elapsed.
var ErrExpired = errors.New("conversation: thread expired")

// ErrUnknown is returned by Get when no thread exists for the given id.
var ErrUnknown = errors.New("conversation: unknown thread id")

// ErrThreadCapReached is returned by Append when the thread already holds
// MAX_TURNS turns.
var ErrThreadCapReached = errors.New("conversation: thread turn cap reached")

// Store is a thread-safe in-memory Thread registry with TTL eviction,
// generalizing the teacher's internal/session.Store to per-thread locking
// (spec.md §5: "mutations serialized per thread-id"; two readers of
// different threads must never contend on the same lock).
type Store struct {
	mu       sync.RWMutex // guards the threads map itself, not thread contents
	threads  map[string]*Thread
	ttl      time.Duration
	maxTurns int
	done     chan struct{}
}

// NewStore creates a Store with the given inactivity TTL and max-turns cap,
// starting a background goroutine that evicts expired threads.
func NewStore(ttl time.Duration, maxTurns int) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	s := &Store{
		threads:  make(map[string]*Thread),
		ttl:      ttl,
		maxTurns: maxTurns,
		done:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Create starts a new thread seeded with the first user turn, returning its
// id (spec.md §4.4: "create(initial_tool, initial_model, first_user_turn) →
// thread_id").
func (s *Store) Create(initialTool, initialModel string, firstUserTurn Turn) string {
	id := uuid.NewString()
	now := time.Now()
	t := &Thread{
		ID:             id,
		CreatedAt:      now,
		LastAccessedAt: now,
		InitialTool:    initialTool,
		InitialModel:   initialModel,
		Turns:          []Turn{firstUserTurn},
		FilesEverSeen:  make(map[string]bool),
		ImagesEverSeen: make(map[string]bool),
	}
	markReferenced(t, firstUserTurn)

	s.mu.Lock()
	s.threads[id] = t
	s.mu.Unlock()
	return id
}

// Get returns the thread for id, or ErrUnknown/ErrExpired. A copy of the
// Turns slice is returned so callers cannot mutate store state without
// going through Append.
func (s *Store) Get(id string) (Thread, error) {
	s.mu.RLock()
	t, ok := s.threads[id]
	s.mu.RUnlock()
	if !ok {
		return Thread{}, ErrUnknown
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.LastAccessedAt) > s.ttl {
		return Thread{}, ErrExpired
	}
	return t.snapshot(), nil
}

// Append adds one turn to the thread, enforcing MAX_TURNS (spec.md §4.4:
// "append(thread_id, turn): atomic; refreshes last-accessed; fails with
// ThreadCapReached when turns ≥ MAX_TURNS").
func (s *Store) Append(id string, turn Turn) error {
	s.mu.RLock()
	t, ok := s.threads[id]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknown
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if time.Since(t.LastAccessedAt) > s.ttl {
		return ErrExpired
	}
	if len(t.Turns) >= s.maxTurns {
		return ErrThreadCapReached
	}
	t.Turns = append(t.Turns, turn)
	markReferenced(t, turn)
	t.LastAccessedAt = time.Now()
	return nil
}

// Delete removes a thread explicitly.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, id)
}

// Count returns the number of active threads.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.RLock()
	candidates := make([]*Thread, 0, len(s.threads))
	for _, t := range s.threads {
		candidates = append(candidates, t)
	}
	s.mu.RUnlock()

	var expiredIDs []string
	for _, t := range candidates {
		t.mu.Lock()
		expired := t.LastAccessedAt.Before(cutoff)
		t.mu.Unlock()
		if expired {
			expiredIDs = append(expiredIDs, t.ID)
		}
	}

	if len(expiredIDs) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range expiredIDs {
		delete(s.threads, id)
	}
	s.mu.Unlock()
}

// snapshot copies turn history and file/image sets out of a locked Thread.
func (t *Thread) snapshot() Thread {
	turns := make([]Turn, len(t.Turns))
	copy(turns, t.Turns)
	files := make(map[string]bool, len(t.FilesEverSeen))
	for k, v := range t.FilesEverSeen {
		files[k] = v
	}
	images := make(map[string]bool, len(t.ImagesEverSeen))
	for k, v := range t.ImagesEverSeen {
		images[k] = v
	}
	return Thread{
		ID:             t.ID,
		CreatedAt:      t.CreatedAt,
		LastAccessedAt: t.LastAccessedAt,
		InitialTool:    t.InitialTool,
		InitialModel:   t.InitialModel,
		Turns:          turns,
		FilesEverSeen:  files,
		ImagesEverSeen: images,
	}
}

func markReferenced(t *Thread, turn Turn) {
	for _, f := range turn.Files {
		t.FilesEverSeen[f] = true
	}
	for _, img := range turn.Images {
		t.ImagesEverSeen[img] = true
	}
}
