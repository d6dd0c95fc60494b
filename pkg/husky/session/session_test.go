package session

import (
	"context"
	"testing"
	"time"

	"github.com/husky-team/husky/pkg/husky/definition"
	"github.com/husky-team/husky/pkg/husky/types"
)

func singleProcessTopology(bindAddr string) *types.ProcessTopology {
	return &types.ProcessTopology{
		Self:        types.ProcessId(0),
		BindAddress: types.PeerAddress(bindAddr),
		Peers:       map[types.ProcessId]types.PeerAddress{},
		ThreadProcess: map[types.GlobalThreadId]types.ProcessId{
			0: 0,
			1: 0,
		},
		LocalThreads: []types.GlobalThreadId{0, 1},
	}
}

func TestStartSingleProcessSession(t *testing.T) {
	top := singleProcessTopology("127.0.0.1:0")
	log := definition.NewDefaultLogger()
	log.ToggleDebug(false)

	sess, err := Start(top, log, Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Close()

	mailbox0, err := sess.Mailbox(types.GlobalThreadId(0))
	if err != nil {
		t.Fatalf("Mailbox(0): %v", err)
	}
	mailbox1, err := sess.Mailbox(types.GlobalThreadId(1))
	if err != nil {
		t.Fatalf("Mailbox(1): %v", err)
	}

	mailbox0.Send(types.GlobalThreadId(1), types.ChannelId(0), types.Progress(0), types.WrapBatch([]byte("ping")))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if ok := mailbox1.Poll(types.ChannelId(0), types.Progress(0)); !ok {
			t.Error("expected a batch to arrive")
			return
		}
		got, err := mailbox1.Recv(types.ChannelId(0), types.Progress(0))
		if err != nil {
			t.Errorf("Recv: %v", err)
			return
		}
		if string(got.Bytes()) != "ping" {
			t.Errorf("unexpected payload: %q", got.Bytes())
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mailbox delivery timed out")
	}
}

func TestMailboxRejectsUnknownThread(t *testing.T) {
	top := singleProcessTopology("127.0.0.1:0")
	log := definition.NewDefaultLogger()
	sess, err := Start(top, log, Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Close()

	if _, err := sess.Mailbox(types.GlobalThreadId(99)); err == nil {
		t.Fatal("expected an error for a thread not hosted by this session")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	top := singleProcessTopology("127.0.0.1:0")
	log := definition.NewDefaultLogger()
	sess, err := Start(top, log, Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sess.Run(ctx) }()

	cancel()
	select {
	case <-runDone:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
