package core

import (
	"sync"

	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/types"
)

type channelProgressKey struct {
	channel  types.ChannelId
	progress types.Progress
}

type eventKind int

const (
	evOutBatch eventKind = iota
	evOutComplete
	evInBatch
	evInComplete
	evDestroy
)

type loopEvent struct {
	kind     eventKind
	thread   types.GlobalThreadId
	channel  types.ChannelId
	progress types.Progress
	batch    *types.Batch
}

// MailboxEventLoop is the single dedicated thread per process that
// serializes every mailbox state transition. Worker threads never touch
// its tables directly; they only push events through Send/SendComplete
// on their LocalMailbox, or through the CentralRecver on the receiving
// side.
type MailboxEventLoop struct {
	log       definition.Logger
	processID types.ProcessId

	events chan loopEvent
	done   chan struct{}

	mu                  sync.Mutex
	numLocalThreads     int
	numGlobalProcesses  int
	registeredMailboxes map[types.GlobalThreadId]*LocalMailbox
	tidToPid            map[types.GlobalThreadId]types.ProcessId
	senders             map[types.ProcessId]*PeerSender
	outCompleteCounter  map[channelProgressKey]int
	inCompleteCounter   map[channelProgressKey]int
	collectors          *metrics.Collectors
}

// SetMetrics attaches a metrics.Collectors the loop should update as it
// processes events. Optional; a nil-collectors loop just skips counting.
func (l *MailboxEventLoop) SetMetrics(c *metrics.Collectors) {
	l.collectors = c
}

// NewMailboxEventLoop creates a loop for the given process and starts
// its serving goroutine.
func NewMailboxEventLoop(processID types.ProcessId, log definition.Logger) *MailboxEventLoop {
	l := &MailboxEventLoop{
		log:                 log,
		processID:           processID,
		events:              make(chan loopEvent, 256),
		done:                make(chan struct{}),
		registeredMailboxes: make(map[types.GlobalThreadId]*LocalMailbox),
		tidToPid:            make(map[types.GlobalThreadId]types.ProcessId),
		senders:             make(map[types.ProcessId]*PeerSender),
		outCompleteCounter:  make(map[channelProgressKey]int),
		inCompleteCounter:   make(map[channelProgressKey]int),
	}
	go l.serve()
	return l
}

// RegisterMailbox constructs and registers a LocalMailbox for
// threadID, returning it for the owning worker to use.
func (l *MailboxEventLoop) RegisterMailbox(threadID types.GlobalThreadId) (*LocalMailbox, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.registeredMailboxes[threadID]; exists {
		return nil, types.InvalidState("mailbox for thread %s already registered", threadID)
	}
	m := newLocalMailbox(threadID, l)
	l.registeredMailboxes[threadID] = m
	l.tidToPid[threadID] = l.processID
	l.numLocalThreads++
	return m, nil
}

// RegisterPeerThread records that thread belongs to a remote process,
// so outgoing batches addressed to it are routed over that peer's
// socket instead of delivered locally.
func (l *MailboxEventLoop) RegisterPeerThread(thread types.GlobalThreadId, process types.ProcessId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tidToPid[thread] = process
}

// RegisterPeerSender connects an outgoing stream to a remote process.
// Must be called once per remote process before any batch is routed to
// it.
func (l *MailboxEventLoop) RegisterPeerSender(process types.ProcessId, sender *PeerSender) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.senders[process] = sender
	l.numGlobalProcesses++
}

// postOutBatch enqueues an OutBatch event; called from worker
// goroutines via LocalMailbox.Send, never blocks on mailbox state.
func (l *MailboxEventLoop) postOutBatch(dst types.GlobalThreadId, c types.ChannelId, p types.Progress, batch *types.Batch) {
	l.events <- loopEvent{kind: evOutBatch, thread: dst, channel: c, progress: p, batch: batch}
}

func (l *MailboxEventLoop) postOutComplete(c types.ChannelId, p types.Progress) {
	l.events <- loopEvent{kind: evOutComplete, channel: c, progress: p}
}

// postInBatch is used by the CentralRecver to hand off a batch that
// arrived from a peer.
func (l *MailboxEventLoop) postInBatch(tid types.GlobalThreadId, c types.ChannelId, p types.Progress, batch *types.Batch) {
	l.events <- loopEvent{kind: evInBatch, thread: tid, channel: c, progress: p, batch: batch}
}

// postInComplete is used by the CentralRecver when a remote peer
// announces PeerComplete.
func (l *MailboxEventLoop) postInComplete(c types.ChannelId, p types.Progress) {
	l.events <- loopEvent{kind: evInComplete, channel: c, progress: p}
}

// Destroy asks the loop to exit and waits for it to do so.
func (l *MailboxEventLoop) Destroy() {
	l.events <- loopEvent{kind: evDestroy}
	<-l.done
}

func (l *MailboxEventLoop) serve() {
	defer close(l.done)
	for ev := range l.events {
		switch ev.kind {
		case evDestroy:
			return
		case evOutBatch:
			l.handleOutBatch(ev)
		case evOutComplete:
			l.handleOutComplete(ev)
		case evInBatch:
			l.handleInBatch(ev)
		case evInComplete:
			l.handleInComplete(ev)
		default:
			l.log.Fatalf("mailbox event loop: unknown event type %d", ev.kind)
		}
	}
}

func (l *MailboxEventLoop) handleOutBatch(ev loopEvent) {
	l.mu.Lock()
	pid, known := l.tidToPid[ev.thread]
	l.mu.Unlock()

	if !known {
		l.log.Fatalf("mailbox event loop: no process registered for thread %s", ev.thread)
		return
	}
	if l.collectors != nil {
		l.collectors.BatchesSent.Inc()
	}

	if pid == l.processID {
		l.handleInBatch(ev)
		return
	}

	l.mu.Lock()
	sender, ok := l.senders[pid]
	l.mu.Unlock()
	if !ok {
		l.log.Fatalf("mailbox event loop: no peer sender registered for process %s", pid)
		return
	}
	if err := sender.SendBatch(ev.thread, ev.channel, ev.progress, ev.batch.Bytes()); err != nil {
		l.log.Fatalf("mailbox event loop: peer send to %s failed: %v", pid, err)
		return
	}
}

func (l *MailboxEventLoop) handleInBatch(ev loopEvent) {
	l.mu.Lock()
	mailbox, ok := l.registeredMailboxes[ev.thread]
	l.mu.Unlock()
	if !ok {
		l.log.Fatalf("mailbox event loop: local mailbox for thread %s does not exist", ev.thread)
		return
	}
	mailbox.deliverLocal(ev.channel, ev.progress, ev.batch)
	if l.collectors != nil {
		l.collectors.BatchesReceived.Inc()
	}
}

func (l *MailboxEventLoop) handleOutComplete(ev loopEvent) {
	key := channelProgressKey{ev.channel, ev.progress}

	l.mu.Lock()
	l.outCompleteCounter[key]++
	reached := l.outCompleteCounter[key] == l.numLocalThreads
	var senders []*PeerSender
	if reached {
		delete(l.outCompleteCounter, key)
		for _, s := range l.senders {
			senders = append(senders, s)
		}
	}
	l.mu.Unlock()

	if !reached {
		return
	}

	for _, s := range senders {
		if err := s.SendPeerComplete(ev.channel, ev.progress); err != nil {
			l.log.Fatalf("mailbox event loop: peer-complete broadcast failed: %v", err)
		}
	}
	if l.collectors != nil {
		l.collectors.EventLoopEvents.WithLabelValues("out").Inc()
	}
	l.handleInComplete(loopEvent{channel: ev.channel, progress: ev.progress})
}

func (l *MailboxEventLoop) handleInComplete(ev loopEvent) {
	key := channelProgressKey{ev.channel, ev.progress}

	l.mu.Lock()
	l.inCompleteCounter[key]++
	reached := l.inCompleteCounter[key] == l.numGlobalProcesses+1
	var mailboxes []*LocalMailbox
	if reached {
		delete(l.inCompleteCounter, key)
		for _, m := range l.registeredMailboxes {
			mailboxes = append(mailboxes, m)
		}
	}
	l.mu.Unlock()

	if !reached {
		return
	}
	if l.collectors != nil {
		l.collectors.EventLoopEvents.WithLabelValues("in").Inc()
	}
	for _, m := range mailboxes {
		m.markComplete(ev.channel, ev.progress)
	}
}
