package core

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	commonlog "github.com/prometheus/common/log"

	"github.com/husky-team/husky/internal/wire"
	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/types"
)

// PeerSender owns the single outgoing socket to one remote process.
// Sends normally come from the owning MailboxEventLoop; a mutex
// serializes them with Close, which the session calls from its own
// goroutine.
type PeerSender struct {
	mu         sync.Mutex
	conn       net.Conn
	w          *bufio.Writer
	log        definition.Logger
	address    types.PeerAddress
	collectors *metrics.Collectors
}

// DialPeer opens the outgoing connection to a peer's bind address.
// collectors may be nil.
func DialPeer(address types.PeerAddress, log definition.Logger, collectors *metrics.Collectors) (*PeerSender, error) {
	conn, err := net.Dial("tcp", string(address))
	if err != nil {
		return nil, fmt.Errorf("%w: dial peer %s: %v", types.ErrConfig, address, err)
	}
	if collectors != nil {
		collectors.PeerConnections.Inc()
	}
	return &PeerSender{
		conn:       conn,
		w:          bufio.NewWriter(conn),
		log:        log,
		address:    address,
		collectors: collectors,
	}, nil
}

// SendBatch serializes a regular batch envelope to the peer.
func (p *PeerSender) SendBatch(tid types.GlobalThreadId, c types.ChannelId, prog types.Progress, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := wire.WriteBatch(p.w, tid, c, prog, payload); err != nil {
		return err
	}
	return p.w.Flush()
}

// SendPeerComplete serializes a peer-complete marker to the peer.
func (p *PeerSender) SendPeerComplete(c types.ChannelId, prog types.Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := wire.WritePeerComplete(p.w, c, prog); err != nil {
		return err
	}
	return p.w.Flush()
}

// Close tears down the outgoing connection.
func (p *PeerSender) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.collectors != nil {
		p.collectors.PeerConnections.Dec()
	}
	return p.conn.Close()
}

// CentralRecver owns the single inbound socket for a process. Every
// envelope it decodes is forwarded to the event loop as an in-process
// event; it never touches mailbox state directly.
type CentralRecver struct {
	log      definition.Logger
	listener net.Listener
	loop     *MailboxEventLoop
	bindAddr types.PeerAddress

	wg sync.WaitGroup
}

// NewCentralRecver binds addr and starts serving inbound connections
// into loop.
func NewCentralRecver(addr types.PeerAddress, loop *MailboxEventLoop, log definition.Logger) (*CentralRecver, error) {
	listener, err := net.Listen("tcp", string(addr))
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %v", types.ErrConfig, addr, err)
	}
	r := &CentralRecver{
		log:      log,
		listener: listener,
		loop:     loop,
		bindAddr: addr,
	}
	r.wg.Add(1)
	go r.serve()
	return r, nil
}

func (r *CentralRecver) serve() {
	defer r.wg.Done()
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		r.wg.Add(1)
		go r.handleConn(conn)
	}
}

func (r *CentralRecver) handleConn(conn net.Conn) {
	defer r.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		env, err := wire.ReadEnvelope(reader)
		if err != nil {
			if err != io.EOF {
				commonlog.Warnf("central receiver: connection from %s closed with error: %v", conn.RemoteAddr(), err)
			}
			return
		}
		switch env.Kind {
		case wire.KindShutdown:
			return
		case wire.KindPeerComplete:
			r.loop.postInComplete(env.Channel, env.Progress)
		case wire.KindBatch:
			r.loop.postInBatch(env.Thread, env.Channel, env.Progress, types.WrapBatch(env.Payload))
		default:
			r.log.Fatalf("central receiver: unknown envelope kind %d", env.Kind)
		}
	}
}

// Close stops accepting new connections and waits for in-flight
// connection handlers to drain.
func (r *CentralRecver) Close() error {
	err := r.listener.Close()
	r.wg.Wait()
	return err
}
