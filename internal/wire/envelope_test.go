package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/husky-team/husky/pkg/husky/types"
)

func TestWriteReadBatchRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("the quick brown fox")
	if err := WriteBatch(&buf, 7, 3, 12, payload); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	env, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if env.Kind != KindBatch {
		t.Fatalf("expected KindBatch, got %v", env.Kind)
	}
	if env.Thread != 7 || env.Channel != 3 || env.Progress != 12 {
		t.Fatalf("unexpected envelope fields: %+v", env)
	}
	if !bytes.Equal(env.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", env.Payload, payload)
	}
}

func TestWriteReadPeerCompleteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePeerComplete(&buf, 4, 9); err != nil {
		t.Fatalf("WritePeerComplete: %v", err)
	}

	env, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if env.Kind != KindPeerComplete || env.Channel != 4 || env.Progress != 9 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWriteReadShutdownRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteShutdown(&buf); err != nil {
		t.Fatalf("WriteShutdown: %v", err)
	}

	env, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("ReadEnvelope: %v", err)
	}
	if env.Kind != KindShutdown {
		t.Fatalf("expected KindShutdown, got %v", env.Kind)
	}
}

func TestReadEnvelopeRejectsUnknownSentinel(t *testing.T) {
	var buf bytes.Buffer
	if err := writeInt32(&buf, -99); err != nil {
		t.Fatalf("writeInt32: %v", err)
	}

	_, err := ReadEnvelope(&buf)
	if !errors.Is(err, types.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
}

func TestReadEnvelopeRejectsNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	writeInt32(&buf, 1)
	writeInt32(&buf, 1)
	writeInt32(&buf, 1)
	writeInt32(&buf, -5)

	_, err := ReadEnvelope(&buf)
	if !errors.Is(err, types.ErrFatal) {
		t.Fatalf("expected ErrFatal, got %v", err)
	}
}

func TestMultipleEnvelopesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	WriteBatch(&buf, 1, 1, 0, []byte("a"))
	WritePeerComplete(&buf, 1, 0)
	WriteShutdown(&buf)

	first, err := ReadEnvelope(&buf)
	if err != nil || first.Kind != KindBatch {
		t.Fatalf("first envelope: %+v, %v", first, err)
	}
	second, err := ReadEnvelope(&buf)
	if err != nil || second.Kind != KindPeerComplete {
		t.Fatalf("second envelope: %+v, %v", second, err)
	}
	third, err := ReadEnvelope(&buf)
	if err != nil || third.Kind != KindShutdown {
		t.Fatalf("third envelope: %+v, %v", third, err)
	}
}
