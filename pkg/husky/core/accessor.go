// Package core implements the single-owner/multi-visitor collection
// handoff (Accessor, Shuffler, ShuffleCombiner), the per-thread mailbox
// API, the process-wide mailbox event loop, and the peer transport that
// ties mailboxes across processes together.
package core

import (
	"sync"

	"github.com/husky-team/husky/pkg/husky/base"
	"github.com/husky-team/husky/pkg/husky/types"
)

// Visitor is a unit's handle onto an Accessor. A unit must hold no more
// than one live Visitor per Accessor: calling Access twice without an
// intervening Leave is rejected rather than silently re-entering.
//
// This plays the role the original's thread-local access_states_ set
// played, made explicit because goroutines carry no thread-local
// storage to hang such a set from.
type Visitor struct {
	gen      *base.GenerationHandle
	accessed bool
}

// Accessor orchestrates one owner and a fixed number of visiting units
// over a shared collection across rounds:
//
//	STORAGE --commit(owner)--> ACCESS --leave(visitor)--> (all left) --> STORAGE
//
// Init must run before any other method; the first caller wins and
// later Init calls are no-ops. Owner methods (Storage, Commit) must be
// called by exactly one goroutine at a time; visitor methods (Access,
// Leave) may be called concurrently, once per round per Visitor.
type Accessor[T any] struct {
	name string

	initOnce      sync.Once
	numUnits      int
	commitBarrier *base.CounterBarrier
	accessLock    *base.GenerationLock

	mu         sync.Mutex
	collection *T
	committing bool
}

// NewAccessor constructs an uninitialized accessor. name is used only
// for diagnostics in returned errors.
func NewAccessor[T any](name string) *Accessor[T] {
	return &Accessor[T]{
		name:          name,
		commitBarrier: base.NewCounterBarrier(),
		accessLock:    base.NewGenerationLock(),
	}
}

// Init sets the number of visiting units. Only the first call takes
// effect; it may be called from any goroutine after construction.
func (a *Accessor[T]) Init(numUnits int) {
	a.initOnce.Do(func() {
		a.numUnits = numUnits
		a.commitBarrier.SetTarget(numUnits)
	})
}

func (a *Accessor[T]) requireInit() error {
	if a.numUnits == 0 {
		return types.InvalidState("accessor %q used before init", a.name)
	}
	return nil
}

// NewVisitor creates a fresh handle for one unit to access this
// accessor. Each unit should keep its own Visitor across rounds.
func (a *Accessor[T]) NewVisitor() *Visitor {
	return &Visitor{gen: a.accessLock.NewHandle()}
}

// Storage returns the collection for owner mutation. It fails with
// InvalidState while a commit is in progress and visitors have not all
// left yet.
func (a *Accessor[T]) Storage() (*T, error) {
	if err := a.requireInit(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.committing {
		return nil, types.InvalidState("accessor %q: storage() while commit in progress", a.name)
	}
	if a.collection == nil {
		a.collection = new(T)
	}
	return a.collection, nil
}

// Commit transfers collection into the accessor, releasing whatever it
// held, and wakes every visitor blocked in Access for this round.
func (a *Accessor[T]) Commit(collection *T) error {
	if err := a.requireInit(); err != nil {
		return err
	}
	a.mu.Lock()
	if a.committing {
		a.mu.Unlock()
		return types.InvalidState("accessor %q: commit() while a previous round is still committing", a.name)
	}
	a.collection = collection
	a.committing = true
	a.mu.Unlock()

	a.accessLock.Notify()
	return nil
}

// CommitInternal commits whatever the owner already holds via Storage,
// creating an empty collection first if none was ever requested.
func (a *Accessor[T]) CommitInternal() error {
	if err := a.requireInit(); err != nil {
		return err
	}
	a.mu.Lock()
	if a.committing {
		a.mu.Unlock()
		return types.InvalidState("accessor %q: commit() while a previous round is still committing", a.name)
	}
	if a.collection == nil {
		a.collection = new(T)
	}
	a.committing = true
	a.mu.Unlock()

	a.accessLock.Notify()
	return nil
}

// Access blocks until the owner's Commit for the current round has run,
// then returns the committed collection. Each Visitor may access once
// before calling Leave; a second Access without an intervening Leave is
// a DoubleAccess InvalidState error.
func (a *Accessor[T]) Access(v *Visitor) (*T, error) {
	if err := a.requireInit(); err != nil {
		return nil, err
	}
	if v.accessed {
		return nil, types.InvalidState("accessor %q: double access by the same visitor", a.name)
	}
	v.gen.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	v.accessed = true
	return a.collection, nil
}

// Leave arrives at the commit barrier. Once every unit has left, the
// round is closed and the owner is free to Storage/Commit again.
func (a *Accessor[T]) Leave(v *Visitor) error {
	if err := a.requireInit(); err != nil {
		return err
	}
	if !v.accessed {
		return types.InvalidState("accessor %q: leave() without a matching access()", a.name)
	}
	v.accessed = false
	a.commitBarrier.Arrive(true)

	a.mu.Lock()
	a.committing = false
	a.mu.Unlock()
	return nil
}
