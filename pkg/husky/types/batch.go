package types

// Batch is an append/read ordered byte buffer making up a single `send`
// payload. Ownership is single: once a Batch is handed to the event loop
// the producer must not touch it again. Clone gives a caller an
// independent copy when it needs the bytes after handing the batch off;
// the event loop itself serializes outgoing batches from Bytes and does
// not clone them.
type Batch struct {
	data []byte
}

// NewBatch copies b into a new Batch. Callers that already own a slice
// they will never mutate again may use WrapBatch instead to avoid the copy.
func NewBatch(b []byte) *Batch {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Batch{data: cp}
}

// WrapBatch takes ownership of b without copying.
func WrapBatch(b []byte) *Batch {
	return &Batch{data: b}
}

// Size returns the number of bytes held by the batch.
func (b *Batch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Bytes returns the underlying byte slice. The caller must not retain it
// past the point where it hands the batch off (e.g. into a mailbox send).
func (b *Batch) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Clone returns a Batch with an independent copy of the bytes, used when a
// batch must cross a process boundary and also remain usable locally.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	return NewBatch(b.data)
}
