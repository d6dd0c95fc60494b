package core

import (
	"sync"

	"github.com/husky-team/husky/pkg/husky/types"
)

// Shuffler is an Accessor specialization with a double-buffered
// collection: the owner fills a private write buffer via Storage, and
// Commit swaps that buffer into the read side visitors see. This lets
// the owner start filling round k+1 while visitors of round k are
// still reading.
type Shuffler[T any] struct {
	acc *Accessor[T]

	mu       sync.Mutex
	writeBuf *T
}

// NewShuffler constructs an uninitialized shuffler.
func NewShuffler[T any]() *Shuffler[T] {
	return &Shuffler[T]{acc: NewAccessor[T]("shuffler")}
}

// Init sets the number of visiting units. See Accessor.Init.
func (s *Shuffler[T]) Init(numUnits int) { s.acc.Init(numUnits) }

// Storage returns the write-side buffer, creating it lazily.
func (s *Shuffler[T]) Storage() (*T, error) {
	if err := s.acc.requireInit(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeBuf == nil {
		s.writeBuf = new(T)
	}
	return s.writeBuf, nil
}

// Commit moves collection into the write buffer, swaps it onto the
// read side, and releases it to visitors.
func (s *Shuffler[T]) Commit(collection *T) error {
	s.mu.Lock()
	s.writeBuf = collection
	buf := s.writeBuf
	s.writeBuf = nil
	s.mu.Unlock()
	return s.acc.Commit(buf)
}

// CommitInternal swaps whatever is in the write buffer (creating an
// empty one if Storage was never called) onto the read side.
func (s *Shuffler[T]) CommitInternal() error {
	s.mu.Lock()
	if s.writeBuf == nil {
		s.writeBuf = new(T)
	}
	buf := s.writeBuf
	s.writeBuf = nil
	s.mu.Unlock()
	return s.acc.Commit(buf)
}

// NewVisitor creates a fresh handle for one unit to access this shuffler.
func (s *Shuffler[T]) NewVisitor() *Visitor { return s.acc.NewVisitor() }

// Access returns the read-side collection once the current round has committed.
func (s *Shuffler[T]) Access(v *Visitor) (*T, error) { return s.acc.Access(v) }

// Leave releases this unit's hold on the current round's collection.
func (s *Shuffler[T]) Leave(v *Visitor) error { return s.acc.Leave(v) }

// ShuffleCombiner is a per-destination-unit vector of Shufflers. It is
// the per-thread outgoing-batch structure used to build one set of
// per-destination message buffers for a round: Storage/Commit/Access/
// Leave(idx) apply to the idx-th destination slot.
type ShuffleCombiner[T any] struct {
	slots []*Shuffler[T]
}

// NewShuffleCombiner creates numUnits slots, each sized for exactly one
// visitor (the single reader that later drains that destination's
// buffer).
func NewShuffleCombiner[T any](numUnits int) *ShuffleCombiner[T] {
	sc := &ShuffleCombiner[T]{slots: make([]*Shuffler[T], numUnits)}
	for i := range sc.slots {
		sc.slots[i] = NewShuffler[T]()
		sc.slots[i].Init(1)
	}
	return sc
}

func (sc *ShuffleCombiner[T]) slot(idx int) (*Shuffler[T], error) {
	if idx < 0 || idx >= len(sc.slots) {
		return nil, types.InvalidState("shuffle combiner: destination index %d out of range [0,%d)", idx, len(sc.slots))
	}
	return sc.slots[idx], nil
}

// Storage returns the idx-th destination's write buffer.
func (sc *ShuffleCombiner[T]) Storage(idx int) (*T, error) {
	s, err := sc.slot(idx)
	if err != nil {
		return nil, err
	}
	return s.Storage()
}

// Commit commits the idx-th destination's internally held write buffer.
func (sc *ShuffleCombiner[T]) Commit(idx int) error {
	s, err := sc.slot(idx)
	if err != nil {
		return err
	}
	return s.CommitInternal()
}

// Access returns the idx-th destination's committed collection.
func (sc *ShuffleCombiner[T]) Access(idx int, v *Visitor) (*T, error) {
	s, err := sc.slot(idx)
	if err != nil {
		return nil, err
	}
	return s.Access(v)
}

// Leave releases the idx-th destination's hold for this round.
func (sc *ShuffleCombiner[T]) Leave(idx int, v *Visitor) error {
	s, err := sc.slot(idx)
	if err != nil {
		return err
	}
	return s.Leave(v)
}

// NewVisitor creates a visitor handle for the idx-th destination slot.
// The handle waits on that slot's commits only, so it is used with the
// same idx in Access and Leave.
func (sc *ShuffleCombiner[T]) NewVisitor(idx int) (*Visitor, error) {
	s, err := sc.slot(idx)
	if err != nil {
		return nil, err
	}
	return s.NewVisitor(), nil
}
