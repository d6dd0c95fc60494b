package base

import "sync"

// DynamicBarrier is a ReusableBarrier where the cohort size is decided by
// the caller on each Wait instead of fixed at construction - useful when
// the number of parties for a round isn't known until the round starts.
type DynamicBarrier struct {
	mutex      sync.Mutex
	cond       *sync.Cond
	count      int
	generation uint64
}

// NewDynamicBarrier creates an empty dynamic barrier.
func NewDynamicBarrier() *DynamicBarrier {
	b := &DynamicBarrier{}
	b.cond = sync.NewCond(&b.mutex)
	return b
}

// Wait blocks until n calls (for this same n) have arrived, then releases
// them all and starts a fresh round.
func (b *DynamicBarrier) Wait(n int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	gen := b.generation
	b.count++
	if b.count == n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return
	}

	for gen == b.generation {
		b.cond.Wait()
	}
}
