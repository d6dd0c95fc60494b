package types

import (
	"errors"
	"testing"
)

func sharedTopology() *ProcessTopology {
	return &ProcessTopology{
		Self:        0,
		BindAddress: "127.0.0.1:9000",
		Peers: map[ProcessId]PeerAddress{
			0: "127.0.0.1:9000",
			1: "127.0.0.1:9001",
			2: "127.0.0.1:9002",
		},
		ThreadProcess: map[GlobalThreadId]ProcessId{
			0: 0,
			1: 0,
			2: 1,
			3: 2,
			4: 2,
		},
		LocalThreads: []GlobalThreadId{0, 1},
	}
}

func TestSelectSelfRederivesBindAddressAndLocalThreads(t *testing.T) {
	top := sharedTopology()
	if err := top.SelectSelf(2); err != nil {
		t.Fatalf("SelectSelf: %v", err)
	}
	if top.Self != 2 {
		t.Fatalf("expected self 2, got %s", top.Self)
	}
	if top.BindAddress != "127.0.0.1:9002" {
		t.Fatalf("unexpected bind address: %s", top.BindAddress)
	}
	if len(top.LocalThreads) != 2 || top.LocalThreads[0] != 3 || top.LocalThreads[1] != 4 {
		t.Fatalf("unexpected local threads: %v", top.LocalThreads)
	}
}

func TestSelectSelfRejectsUnknownProcessId(t *testing.T) {
	top := sharedTopology()
	if err := top.SelectSelf(99); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
