package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestCreate_SeedsFirstTurn(t *testing.T) {
	s := NewStore(time.Minute, 10)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "Hi"})
	th, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(th.Turns) != 1 || th.Turns[0].Content != "Hi" {
		t.Fatalf("unexpected turns: %+v", th.Turns)
	}
	if th.InitialTool != "chat" || th.InitialModel != "auto" {
		t.Errorf("unexpected initial tool/model: %+v", th)
	}
}

func TestGet_UnknownThread(t *testing.T) {
	s := NewStore(time.Minute, 10)
	defer s.Close()

	_, err := s.Get("does-not-exist")
	if err != ErrUnknown {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestAppend_RefreshesLastAccessedAndOrdersTurns(t *testing.T) {
	s := NewStore(time.Minute, 10)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "Hi"})
	if err := s.Append(id, Turn{Role: "assistant", Content: "Hello", ModelName: "auto"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	th, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(th.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(th.Turns))
	}
	if th.Turns[1].Role != "assistant" {
		t.Errorf("expected second turn to be assistant, got %q", th.Turns[1].Role)
	}
}

func TestAppend_ThreadCapReached(t *testing.T) {
	const max = 3
	s := NewStore(time.Minute, max)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "1"})
	if err := s.Append(id, Turn{Role: "assistant", Content: "2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Thread now has max-1 turns; one more append must succeed...
	if err := s.Append(id, Turn{Role: "user", Content: "3"}); err != nil {
		t.Fatalf("expected append at max-1 to succeed, got: %v", err)
	}

	// ...and the next must fail with ErrThreadCapReached.
	if err := s.Append(id, Turn{Role: "assistant", Content: "4"}); err != ErrThreadCapReached {
		t.Fatalf("expected ErrThreadCapReached, got %v", err)
	}
}

func TestAppend_UnknownThread(t *testing.T) {
	s := NewStore(time.Minute, 10)
	defer s.Close()

	if err := s.Append("nope", Turn{Role: "user", Content: "x"}); err != ErrUnknown {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestGet_ExpiredThread(t *testing.T) {
	ttl := 20 * time.Millisecond
	s := NewStore(ttl, 10)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "Hi"})
	time.Sleep(ttl * 3)

	if _, err := s.Get(id); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestCleanupLoop_EvictsExpiredThreads(t *testing.T) {
	ttl := 20 * time.Millisecond
	s := NewStore(ttl, 10)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "Hi"})
	time.Sleep(ttl * 4)

	if s.Count() != 0 {
		t.Errorf("expected background cleanup to evict thread, count=%d", s.Count())
	}
	_ = id
}

func TestFilesEverSeen_DedupsAcrossTurns(t *testing.T) {
	s := NewStore(time.Minute, 10)
	defer s.Close()

	id := s.Create("chat", "auto", Turn{Role: "user", Content: "Hi", Files: []string{"/a.go"}})
	if err := s.Append(id, Turn{Role: "assistant", Content: "ok", Files: []string{"/a.go", "/b.go"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	th, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(th.FilesEverSeen) != 2 {
		t.Fatalf("expected 2 distinct files tracked, got %d", len(th.FilesEverSeen))
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := NewStore(time.Minute, 10)
	s.Close()
	s.Close()
	s.Close()
}

func TestConcurrentAppendsToDifferentThreadsDoNotBlockEachOther(t *testing.T) {
	s := NewStore(time.Minute, 1000)
	defer s.Close()

	idA := s.Create("chat", "auto", Turn{Role: "user", Content: "a"})
	idB := s.Create("chat", "auto", Turn{Role: "user", Content: "b"})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Append(idA, Turn{Role: "assistant", Content: "x"})
			_ = s.Append(idA, Turn{Role: "user", Content: "y"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = s.Append(idB, Turn{Role: "assistant", Content: "x"})
			_ = s.Append(idB, Turn{Role: "user", Content: "y"})
		}
	}()
	wg.Wait()

	thA, err := s.Get(idA)
	if err != nil {
		t.Fatalf("Get A: %v", err)
	}
	thB, err := s.Get(idB)
	if err != nil {
		t.Fatalf("Get B: %v", err)
	}
	if len(thA.Turns) != 101 || len(thB.Turns) != 101 {
		t.Fatalf("expected 101 turns each, got %d and %d", len(thA.Turns), len(thB.Turns))
	}
}
