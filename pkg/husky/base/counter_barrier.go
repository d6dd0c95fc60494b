package base

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// CounterBarrier is the synchronization primitive behind Accessor's
// commit barrier: callers Arrive at it, optionally blocking, and the
// caller whose arrival reaches the configured target releases everyone
// who chose to wait.
//
// The release path keeps statusMutex held and spins until every waiter
// has observed the wake-up and decremented numWaiting before clearing the
// wake flag, so no new arrival is counted in the meantime. This re-entrance
// guard is what prevents an arrival belonging to the next round from
// being woken by the broadcast that was meant for the round that just
// finished.
type CounterBarrier struct {
	statusMutex   sync.Mutex
	notifyMutex   sync.Mutex
	notifier      *sync.Cond
	counter       int
	target        int
	numWaiting    int32
	wakeUp        bool
}

// NewCounterBarrier creates a barrier with no target set; SetTarget must
// be called before Arrive is meaningful.
func NewCounterBarrier() *CounterBarrier {
	b := &CounterBarrier{}
	b.notifier = sync.NewCond(&b.notifyMutex)
	return b
}

// SetTarget configures how many arrivals release a round.
func (b *CounterBarrier) SetTarget(target int) {
	b.statusMutex.Lock()
	defer b.statusMutex.Unlock()
	b.target = target
}

// Arrive registers one arrival. If this arrival reaches the target, the
// counter resets and every blocked waiter is released before Arrive
// returns. Otherwise, if shouldWait is true, the caller blocks until
// released; if false, it returns immediately without waiting its turn.
func (b *CounterBarrier) Arrive(shouldWait bool) {
	b.statusMutex.Lock()
	b.counter++
	if b.counter == b.target {
		b.counter = 0

		b.notifyMutex.Lock()
		b.wakeUp = true
		b.notifier.Broadcast()
		b.notifyMutex.Unlock()

		for atomic.LoadInt32(&b.numWaiting) != 0 {
			b.notifyMutex.Lock()
			b.notifier.Broadcast()
			b.notifyMutex.Unlock()
			runtime.Gosched()
		}
		b.wakeUp = false
		b.statusMutex.Unlock()
		return
	}

	if !shouldWait {
		b.statusMutex.Unlock()
		return
	}

	atomic.AddInt32(&b.numWaiting, 1)
	b.statusMutex.Unlock()

	b.notifyMutex.Lock()
	for !b.wakeUp {
		b.notifier.Wait()
	}
	b.notifyMutex.Unlock()
	atomic.AddInt32(&b.numWaiting, -1)
}
