package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/husky-team/husky/pkg/husky/types"
)

func withinTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("did not complete within %s", timeout)
	}
}

func TestAccessorSingleRoundHandoff(t *testing.T) {
	a := NewAccessor[[]int]("test")
	a.Init(3)

	storage, err := a.Storage()
	if err != nil {
		t.Fatalf("Storage: %v", err)
	}
	*storage = append(*storage, 1, 2, 3)
	if err := a.Commit(storage); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := a.NewVisitor()
			got, err := a.Access(v)
			if err != nil {
				t.Errorf("Access: %v", err)
				return
			}
			if len(*got) != 3 {
				t.Errorf("expected 3 elements, got %d", len(*got))
			}
			if err := a.Leave(v); err != nil {
				t.Errorf("Leave: %v", err)
			}
		}()
	}
	withinTimeout(t, time.Second, wg.Wait)
}

func TestAccessorDoubleAccessRejected(t *testing.T) {
	a := NewAccessor[int]("test")
	a.Init(1)
	if err := a.Commit(new(int)); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v := a.NewVisitor()
	if _, err := a.Access(v); err != nil {
		t.Fatalf("Access: %v", err)
	}
	if _, err := a.Access(v); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected double-access InvalidState, got %v", err)
	}
}

func TestAccessorLeaveWithoutAccessRejected(t *testing.T) {
	a := NewAccessor[int]("test")
	a.Init(1)
	v := a.NewVisitor()
	if err := a.Leave(v); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestAccessorStorageBlockedDuringCommit(t *testing.T) {
	a := NewAccessor[int]("test")
	a.Init(1)
	if err := a.Commit(new(int)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := a.Storage(); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected InvalidState while committing, got %v", err)
	}
}

func TestAccessorAccessBlocksUntilCommit(t *testing.T) {
	a := NewAccessor[int]("test")
	a.Init(1)
	v := a.NewVisitor()

	done := make(chan struct{})
	go func() {
		_, _ = a.Access(v)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Access returned before Commit")
	case <-time.After(50 * time.Millisecond):
	}

	if err := a.Commit(new(int)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	withinTimeout(t, time.Second, func() { <-done })
}

func TestAccessorMultipleRounds(t *testing.T) {
	a := NewAccessor[int]("test")
	a.Init(2)

	for round := 0; round < 10; round++ {
		val := round
		if err := a.Commit(&val); err != nil {
			t.Fatalf("round %d Commit: %v", round, err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v := a.NewVisitor()
				got, err := a.Access(v)
				if err != nil {
					t.Errorf("Access: %v", err)
					return
				}
				if *got != round {
					t.Errorf("round %d: expected %d, got %d", round, round, *got)
				}
				if err := a.Leave(v); err != nil {
					t.Errorf("Leave: %v", err)
				}
			}()
		}
		withinTimeout(t, time.Second, wg.Wait)
	}
}
