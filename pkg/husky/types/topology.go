package types

import "sort"

// PeerAddress is the URL-like bind address a process's CentralRecver
// listens on, and the address other processes dial to reach it.
type PeerAddress string

// ProcessTopology is the tuple fixed at session start: this process's id,
// the address it must bind its CentralRecver to, and the addresses of
// every peer process (including itself, for uniformity of lookup).
type ProcessTopology struct {
	// Self is this process's id.
	Self ProcessId

	// BindAddress is the address this process's CentralRecver listens on.
	BindAddress PeerAddress

	// Peers maps every process id in the session (including Self) to the
	// address other processes use to reach it.
	Peers map[ProcessId]PeerAddress

	// ThreadProcess maps every global thread id in the session to the
	// process id that hosts it.
	ThreadProcess map[GlobalThreadId]ProcessId

	// LocalThreads lists the global thread ids hosted locally by Self, in
	// local-id order: LocalThreads[i] has LocalThreadId(i).
	LocalThreads []GlobalThreadId
}

// NumLocalThreads returns the number of worker threads hosted by Self.
func (t *ProcessTopology) NumLocalThreads() int {
	return len(t.LocalThreads)
}

// NumProcesses returns the number of processes participating in the
// session (local process included).
func (t *ProcessTopology) NumProcesses() int {
	return len(t.Peers)
}

// ProcessOf returns which process hosts a global thread id.
func (t *ProcessTopology) ProcessOf(tid GlobalThreadId) (ProcessId, bool) {
	pid, ok := t.ThreadProcess[tid]
	return pid, ok
}

// IsLocal reports whether a global thread id is hosted by Self.
func (t *ProcessTopology) IsLocal(tid GlobalThreadId) bool {
	pid, ok := t.ThreadProcess[tid]
	return ok && pid == t.Self
}

// SelectSelf re-derives BindAddress and LocalThreads for pid instead of
// whichever process id the topology file declared as Self, by looking
// pid up in Peers and refiltering ThreadProcess. This is how a single
// topology file shared across every process in a session is turned into
// one process's view of it, with --process-id naming which view.
func (t *ProcessTopology) SelectSelf(pid ProcessId) error {
	addr, ok := t.Peers[pid]
	if !ok {
		return InvalidState("process id %s has no address in the topology's peers map", pid)
	}
	t.Self = pid
	t.BindAddress = addr
	t.LocalThreads = t.LocalThreads[:0]
	for tid, p := range t.ThreadProcess {
		if p == pid {
			t.LocalThreads = append(t.LocalThreads, tid)
		}
	}
	sort.Slice(t.LocalThreads, func(i, j int) bool { return t.LocalThreads[i] < t.LocalThreads[j] })
	return nil
}
