package core

import (
	"sync"
	"time"

	"github.com/husky-team/husky/pkg/husky/base"
	"github.com/husky-team/husky/pkg/husky/types"
)

// ChannelProgress names one (channel, progress) cell, for the
// multi-way poll.
type ChannelProgress struct {
	Channel  types.ChannelId
	Progress types.Progress
}

// LocalMailbox is a per-thread facade over incoming/outgoing batch
// state for every channel. All mutation of its internal tables is
// driven by the owning MailboxEventLoop; the owning worker only reads
// under notifyMu (via Poll) and calls Send/SendComplete, which merely
// post events.
type LocalMailbox struct {
	threadID types.GlobalThreadId
	loop     *MailboxEventLoop

	notifyMu sync.Mutex
	pollCond *sync.Cond

	inQueue      *types.SparseTable[base.ConcurrentQueue[*types.Batch]]
	recvComplete *types.SparseTable[bool]
}

func newLocalMailbox(threadID types.GlobalThreadId, loop *MailboxEventLoop) *LocalMailbox {
	m := &LocalMailbox{
		threadID: threadID,
		loop:     loop,
		inQueue: types.NewSparseTable(func() *base.ConcurrentQueue[*types.Batch] {
			return base.NewConcurrentQueue[*types.Batch]()
		}),
		recvComplete: types.NewSparseTable(func() *bool {
			v := false
			return &v
		}),
	}
	m.pollCond = sync.NewCond(&m.notifyMu)
	return m
}

// ThreadID returns the global thread id this mailbox was registered
// under.
func (m *LocalMailbox) ThreadID() types.GlobalThreadId { return m.threadID }

func (m *LocalMailbox) hasBatch(c types.ChannelId, p types.Progress) bool {
	return !m.inQueue.Get(c, p).IsEmpty()
}

func (m *LocalMailbox) isComplete(c types.ChannelId, p types.Progress) bool {
	return *m.recvComplete.Get(c, p)
}

// reclaimPrevious resets the previous progress's completion cell so it
// can be reused, per the monotonic-progress assumption: progress for a
// given (thread, channel) never decreases.
func (m *LocalMailbox) reclaimPrevious(c types.ChannelId, p types.Progress) {
	if p == 0 {
		return
	}
	*m.recvComplete.Get(c, p-1) = false
}

// Send takes ownership of batch and posts an out-event naming the
// destination thread; it does not block.
func (m *LocalMailbox) Send(dst types.GlobalThreadId, c types.ChannelId, p types.Progress, batch *types.Batch) {
	m.loop.postOutBatch(dst, c, p, batch)
}

// SendComplete declares this thread finished sending for (c, p); this
// triggers the event loop's peer-complete broadcast once every local
// thread has done the same.
func (m *LocalMailbox) SendComplete(c types.ChannelId, p types.Progress) {
	m.loop.postOutComplete(c, p)
}

// PollNonBlock reports, without blocking, whether a batch is currently
// queued for (c, p).
func (m *LocalMailbox) PollNonBlock(c types.ChannelId, p types.Progress) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	return m.hasBatch(c, p)
}

// Poll blocks until a batch is available for (c, p) or the event loop
// has marked it recv_complete. It returns true iff a batch is
// available; false means every peer has finished sending for (c, p).
func (m *LocalMailbox) Poll(c types.ChannelId, p types.Progress) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	for !m.hasBatch(c, p) && !m.isComplete(c, p) {
		m.pollCond.Wait()
	}
	if m.hasBatch(c, p) {
		return true
	}
	m.reclaimPrevious(c, p)
	return false
}

// PollWithTimeout behaves like Poll but returns false if dt elapses
// with no batch and no completion.
func (m *LocalMailbox) PollWithTimeout(c types.ChannelId, p types.Progress, dt time.Duration) bool {
	deadline := time.Now().Add(dt)

	timer := time.AfterFunc(dt, func() {
		m.notifyMu.Lock()
		m.pollCond.Broadcast()
		m.notifyMu.Unlock()
	})
	defer timer.Stop()

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	for !m.hasBatch(c, p) && !m.isComplete(c, p) {
		if time.Now().After(deadline) {
			return false
		}
		m.pollCond.Wait()
	}
	return m.hasBatch(c, p)
}

// PollAny selects across several (channel, progress) pairs, returning
// the index of the first one with an available batch. It returns false
// only once every pair is recv_complete.
func (m *LocalMailbox) PollAny(pairs []ChannelProgress) (int, bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	for {
		for i, cp := range pairs {
			if m.hasBatch(cp.Channel, cp.Progress) {
				return i, true
			}
		}
		allComplete := true
		for _, cp := range pairs {
			if !m.isComplete(cp.Channel, cp.Progress) {
				allComplete = false
				break
			}
		}
		if allComplete {
			for _, cp := range pairs {
				m.reclaimPrevious(cp.Channel, cp.Progress)
			}
			return 0, false
		}
		m.pollCond.Wait()
	}
}

// Recv pops the oldest batch for (c, p). It must be preceded by a
// true-returning Poll/PollNonBlock/PollWithTimeout/PollAny observation;
// calling it otherwise is InvalidState.
func (m *LocalMailbox) Recv(c types.ChannelId, p types.Progress) (*types.Batch, error) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	batch, ok := m.inQueue.Get(c, p).Pop()
	if !ok {
		return nil, types.InvalidState("recv(%s,%s) called without a preceding positive poll", c, p)
	}
	return batch, nil
}

// deliverLocal is called by the event loop (and only the event loop)
// to push an arrived batch into this mailbox and wake a waiting poller.
func (m *LocalMailbox) deliverLocal(c types.ChannelId, p types.Progress, batch *types.Batch) {
	m.notifyMu.Lock()
	m.inQueue.Get(c, p).Push(batch)
	m.notifyMu.Unlock()
	m.pollCond.Signal()
}

// markComplete is called by the event loop once every process in the
// session has called SendComplete for (c, p).
func (m *LocalMailbox) markComplete(c types.ChannelId, p types.Progress) {
	m.notifyMu.Lock()
	*m.recvComplete.Get(c, p) = true
	m.notifyMu.Unlock()
	m.pollCond.Broadcast()
}
