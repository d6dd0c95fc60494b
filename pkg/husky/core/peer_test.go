package core

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/metrics"
	"github.com/husky-team/husky/pkg/husky/types"
)

func TestDialPeerUpdatesConnectionGauge(t *testing.T) {
	log := definition.NewDefaultLogger()
	loop := NewMailboxEventLoop(types.ProcessId(0), log)
	defer loop.Destroy()

	recver, err := NewCentralRecver(types.PeerAddress("127.0.0.1:0"), loop, log)
	if err != nil {
		t.Fatalf("NewCentralRecver: %v", err)
	}
	defer recver.Close()

	collectors := metrics.NewCollectors()
	sender, err := DialPeer(types.PeerAddress(recver.listener.Addr().String()), log, collectors)
	if err != nil {
		t.Fatalf("DialPeer: %v", err)
	}

	if got := testutil.ToFloat64(collectors.PeerConnections); got != 1 {
		t.Fatalf("expected gauge value 1 after dial, got %v", got)
	}

	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := testutil.ToFloat64(collectors.PeerConnections); got != 0 {
		t.Fatalf("expected gauge value 0 after close, got %v", got)
	}
}

func TestPeerSenderRoundTripsBatchAndComplete(t *testing.T) {
	log := definition.NewDefaultLogger()
	loopB := NewMailboxEventLoop(types.ProcessId(1), log)
	defer loopB.Destroy()
	mailboxB, err := loopB.RegisterMailbox(types.GlobalThreadId(0))
	if err != nil {
		t.Fatalf("RegisterMailbox: %v", err)
	}

	recverB, err := NewCentralRecver(types.PeerAddress("127.0.0.1:0"), loopB, log)
	if err != nil {
		t.Fatalf("NewCentralRecver: %v", err)
	}
	defer recverB.Close()

	sender, err := DialPeer(types.PeerAddress(recverB.listener.Addr().String()), log, nil)
	if err != nil {
		t.Fatalf("DialPeer: %v", err)
	}
	defer sender.Close()

	if err := sender.SendBatch(types.GlobalThreadId(0), types.ChannelId(2), types.Progress(0), []byte("payload")); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	withinTimeout(t, time.Second, func() {
		if ok := mailboxB.Poll(types.ChannelId(2), types.Progress(0)); !ok {
			t.Error("expected the sent batch to arrive")
			return
		}
		got, err := mailboxB.Recv(types.ChannelId(2), types.Progress(0))
		if err != nil {
			t.Errorf("Recv: %v", err)
			return
		}
		if string(got.Bytes()) != "payload" {
			t.Errorf("unexpected payload: %q", got.Bytes())
		}
	})

	// sender happens to dial loopB's own recver, so registering it as a
	// peer makes SendComplete's broadcast loop back over the wire: the
	// direct local increment plus the wire-delivered one reach
	// numGlobalProcesses(1)+1.
	loopB.RegisterPeerSender(types.ProcessId(0), sender)
	mailboxB.SendComplete(types.ChannelId(2), types.Progress(0))
	withinTimeout(t, time.Second, func() {
		if ok := mailboxB.Poll(types.ChannelId(2), types.Progress(0)); ok {
			t.Error("expected completion once the looped-back peer-complete arrives")
		}
	})
}
