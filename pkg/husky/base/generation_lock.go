package base

import "sync"

// GenerationLock is an asymmetric many-waiters/one-notifier synchronizer.
// Each caller holds its own Handle (the Go analogue of the C++ original's
// thread-local generation counter, since goroutines have no stable
// thread-local storage): handle.Wait() increments the handle's own
// counter and blocks while it is ahead of the lock's global generation;
// Notify bumps the global generation and wakes everyone. A handle that
// has called Wait exactly k times is released once Notify has been
// called at least k times - independent of whether the handle had even
// called Wait yet when a given Notify happened.
type GenerationLock struct {
	mutex      sync.Mutex
	cond       *sync.Cond
	generation uint64
}

// NewGenerationLock creates a lock at generation zero.
func NewGenerationLock() *GenerationLock {
	l := &GenerationLock{}
	l.cond = sync.NewCond(&l.mutex)
	return l
}

// Notify advances the global generation and wakes every blocked Handle.
func (l *GenerationLock) Notify() {
	l.mutex.Lock()
	l.generation++
	l.cond.Broadcast()
	l.mutex.Unlock()
}

// NewHandle creates a per-caller waiting handle bound to this lock.
func (l *GenerationLock) NewHandle() *GenerationHandle {
	return &GenerationHandle{lock: l}
}

// GenerationHandle is one caller's view of a GenerationLock.
type GenerationHandle struct {
	lock  *GenerationLock
	count uint64
}

// Wait blocks until the lock's global generation has reached the number
// of times this handle has called Wait.
func (h *GenerationHandle) Wait() {
	h.lock.mutex.Lock()
	h.count++
	for h.count > h.lock.generation {
		h.lock.cond.Wait()
	}
	h.lock.mutex.Unlock()
}

// CallOnceEachRound lets a cohort of callers run a function exactly once
// per round: the first handle whose round counter gets ahead of the
// shared generation runs fn and bumps the generation; every other handle
// in that same round is a no-op.
type CallOnceEachRound struct {
	mutex      sync.Mutex
	generation uint64
}

// NewCallOnceEachRound creates a fresh once-per-round coordinator.
func NewCallOnceEachRound() *CallOnceEachRound {
	return &CallOnceEachRound{}
}

// NewHandle creates a per-caller handle bound to this coordinator.
func (c *CallOnceEachRound) NewHandle() *CallOnceHandle {
	return &CallOnceHandle{parent: c}
}

// CallOnceHandle is one caller's view of a CallOnceEachRound.
type CallOnceHandle struct {
	parent *CallOnceEachRound
	count  uint64
}

// Do runs fn if and only if this handle is the first in the cohort to
// call Do since the generation last advanced.
func (h *CallOnceHandle) Do(fn func()) {
	h.parent.mutex.Lock()
	defer h.parent.mutex.Unlock()
	h.count++
	if h.count > h.parent.generation {
		fn()
		h.parent.generation++
	}
}
