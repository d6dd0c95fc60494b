// Package session bootstraps one process's participation in a Husky
// session: it resolves the process topology into a running
// MailboxEventLoop, CentralRecver and one PeerSender per remote
// process, and owns their shutdown.
package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/husky-team/husky/pkg/husky/base"
	"github.com/husky-team/husky/pkg/husky/core"
	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/types"
)

// Session owns every process-wide coordination resource for one run:
// the event loop, the inbound socket, the outgoing peer sockets, the
// channel factories and the session-local lifecycle registry.
type Session struct {
	topology *types.ProcessTopology
	log      definition.Logger
	metrics  *metrics.Collectors

	Registry      *base.SessionRegistry
	EventLoop     *core.MailboxEventLoop
	Recver        *core.CentralRecver
	AccessorSet   *core.AccessorFactory
	CombinerSet   *core.ShuffleCombinerFactory
	mailboxes     map[types.GlobalThreadId]*core.LocalMailbox
	peerSenders   map[types.ProcessId]*core.PeerSender
}

// Options configures an optional metrics sink; a zero value is valid
// and simply runs without metrics.
type Options struct {
	Metrics *metrics.Collectors
}

// Start resolves topology into a running Session: it binds the inbound
// socket, dials every peer, registers a LocalMailbox per local thread,
// and runs SessionRegistry.Initialize.
func Start(topology *types.ProcessTopology, log definition.Logger, opts Options) (*Session, error) {
	s := &Session{
		topology:    topology,
		log:         log,
		metrics:     opts.Metrics,
		Registry:    base.NewSessionRegistry(),
		AccessorSet: core.NewAccessorFactory(),
		CombinerSet: core.NewShuffleCombinerFactory(),
		mailboxes:   make(map[types.GlobalThreadId]*core.LocalMailbox),
		peerSenders: make(map[types.ProcessId]*core.PeerSender),
	}

	s.Registry.Initialize()

	s.EventLoop = core.NewMailboxEventLoop(topology.Self, log)
	if s.metrics != nil {
		s.EventLoop.SetMetrics(s.metrics)
		s.AccessorSet.SetMetrics(s.metrics)
		s.CombinerSet.SetMetrics(s.metrics)
	}

	recver, err := core.NewCentralRecver(topology.BindAddress, s.EventLoop, log)
	if err != nil {
		return nil, err
	}
	s.Recver = recver

	for pid, addr := range topology.Peers {
		if pid == topology.Self {
			continue
		}
		sender, err := core.DialPeer(addr, log, s.metrics)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("session: %w", err)
		}
		s.peerSenders[pid] = sender
		s.EventLoop.RegisterPeerSender(pid, sender)
	}

	for tid, pid := range topology.ThreadProcess {
		if pid != topology.Self {
			s.EventLoop.RegisterPeerThread(tid, pid)
		}
	}

	for _, tid := range topology.LocalThreads {
		mailbox, err := s.EventLoop.RegisterMailbox(tid)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mailboxes[tid] = mailbox
	}

	return s, nil
}

// Mailbox returns the LocalMailbox registered for a local thread.
func (s *Session) Mailbox(thread types.GlobalThreadId) (*core.LocalMailbox, error) {
	m, ok := s.mailboxes[thread]
	if !ok {
		return nil, types.InvalidState("thread %s is not local to this session", thread)
	}
	return m, nil
}

// Run blocks serving the session until ctx is cancelled, then tears
// everything down. It is the process's main loop once Start has
// succeeded.
func (s *Session) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-ctx.Done()
		return s.Close()
	})
	return group.Wait()
}

// Close finalizes the session registry and tears down every owned
// network resource. Safe to call once.
func (s *Session) Close() error {
	s.Registry.Finalize()

	var firstErr error
	if s.Recver != nil {
		if err := s.Recver.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, sender := range s.peerSenders {
		if err := sender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.EventLoop.Destroy()
	return firstErr
}
