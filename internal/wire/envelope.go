// Package wire implements the binary envelope format that crosses a
// process boundary on the peer-to-peer socket: the one place in the
// system where state actually needs to be serialized (everything else
// hands off by pointer inside one process). Integers are 32-bit
// little-endian; byte runs are length-prefixed with a 32-bit length.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/husky-team/husky/pkg/husky/types"
)

// Sentinel thread ids framing the peer socket, per the session's
// external wire contract.
const (
	sentinelShutdown     int32 = -1
	sentinelPeerComplete int32 = -2
)

// Kind tags a decoded Envelope.
type Kind int

const (
	// KindBatch carries a regular message batch: destination thread,
	// channel, progress and payload bytes.
	KindBatch Kind = iota
	// KindPeerComplete announces that the sender has finished sending
	// for (channel, progress).
	KindPeerComplete
	// KindShutdown asks the reader to stop serving and exit.
	KindShutdown
)

// Envelope is a decoded peer-to-peer frame.
type Envelope struct {
	Kind     Kind
	Thread   types.GlobalThreadId
	Channel  types.ChannelId
	Progress types.Progress
	Payload  []byte
}

func writeInt32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// WriteBatch encodes a regular batch envelope: tid (>=0), c, p, bytes.
func WriteBatch(w io.Writer, tid types.GlobalThreadId, c types.ChannelId, p types.Progress, payload []byte) error {
	if err := writeInt32(w, int32(tid)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(c)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(p)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WritePeerComplete encodes a peer-complete marker: -2, c, p.
func WritePeerComplete(w io.Writer, c types.ChannelId, p types.Progress) error {
	if err := writeInt32(w, sentinelPeerComplete); err != nil {
		return err
	}
	if err := writeInt32(w, int32(c)); err != nil {
		return err
	}
	return writeInt32(w, int32(p))
}

// WriteShutdown encodes the shutdown sentinel: -1.
func WriteShutdown(w io.Writer) error {
	return writeInt32(w, sentinelShutdown)
}

// ReadEnvelope decodes one frame from r, blocking until a full frame or
// an error (including io.EOF on a closed connection) is available.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	tid, err := readInt32(r)
	if err != nil {
		return Envelope{}, err
	}

	switch tid {
	case sentinelShutdown:
		return Envelope{Kind: KindShutdown}, nil
	case sentinelPeerComplete:
		c, err := readInt32(r)
		if err != nil {
			return Envelope{}, err
		}
		p, err := readInt32(r)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: KindPeerComplete, Channel: types.ChannelId(c), Progress: types.Progress(p)}, nil
	default:
		if tid < 0 {
			return Envelope{}, fmt.Errorf("%w: unknown envelope sentinel %d", types.ErrFatal, tid)
		}
		c, err := readInt32(r)
		if err != nil {
			return Envelope{}, err
		}
		p, err := readInt32(r)
		if err != nil {
			return Envelope{}, err
		}
		n, err := readInt32(r)
		if err != nil {
			return Envelope{}, err
		}
		if n < 0 {
			return Envelope{}, fmt.Errorf("%w: negative payload length %d", types.ErrFatal, n)
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Envelope{}, err
		}
		return Envelope{
			Kind:     KindBatch,
			Thread:   types.GlobalThreadId(tid),
			Channel:  types.ChannelId(c),
			Progress: types.Progress(p),
			Payload:  payload,
		}, nil
	}
}
