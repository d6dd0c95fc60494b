// Package types holds the identifiers, wire-level value objects and error
// kinds shared by every layer of the coordination core.
package types

import "fmt"

// GlobalThreadId uniquely identifies a worker thread across the whole
// session, independent of which process hosts it.
type GlobalThreadId uint32

// LocalThreadId identifies a worker thread within its own process.
type LocalThreadId uint32

// ProcessId identifies one of the P processes participating in a session.
type ProcessId uint32

// ChannelId identifies a logical, unidirectional, per-round data stream.
type ChannelId uint32

// Progress is the monotonically non-decreasing round counter associated
// with a (thread, channel) pair.
type Progress uint32

func (t GlobalThreadId) String() string { return fmt.Sprintf("gtid(%d)", uint32(t)) }
func (t LocalThreadId) String() string  { return fmt.Sprintf("ltid(%d)", uint32(t)) }
func (p ProcessId) String() string      { return fmt.Sprintf("pid(%d)", uint32(p)) }
func (c ChannelId) String() string      { return fmt.Sprintf("channel(%d)", uint32(c)) }
func (p Progress) String() string       { return fmt.Sprintf("progress(%d)", uint32(p)) }
