package types

import "sync"

// SparseTable is the two-level (channel, progress) sparse table backing
// mailbox and completion state. Get grows the channel axis to at least
// c+1 rows and row c to at least p+1 slots, and constructs only the
// requested cell with newCell; the slots it skips over stay empty until
// they are themselves requested.
// A cell once created is never moved: rows are stored as slices of
// pointers, so growing the outer slices never invalidates a pointer
// returned by an earlier Get.
type SparseTable[T any] struct {
	mutex   sync.Mutex
	rows    [][]*T
	newCell func() *T
}

// NewSparseTable creates an empty table. newCell default-constructs a
// cell the first time a given (channel, progress) pair is touched.
func NewSparseTable[T any](newCell func() *T) *SparseTable[T] {
	return &SparseTable[T]{newCell: newCell}
}

// Get returns the stable cell for (channel, progress), growing the table
// if necessary.
func (s *SparseTable[T]) Get(channel ChannelId, progress Progress) *T {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, p := int(channel), int(progress)
	if c >= len(s.rows) {
		grown := make([][]*T, c+1)
		copy(grown, s.rows)
		s.rows = grown
	}
	row := s.rows[c]
	if p >= len(row) {
		grown := make([]*T, p+1)
		copy(grown, row)
		row = grown
		s.rows[c] = row
	}
	if row[p] == nil {
		row[p] = s.newCell()
	}
	return row[p]
}

// Peek returns the cell for (channel, progress) without creating it, and
// whether it existed.
func (s *SparseTable[T]) Peek(channel ChannelId, progress Progress) (*T, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, p := int(channel), int(progress)
	if c >= len(s.rows) || p >= len(s.rows[c]) {
		return nil, false
	}
	cell := s.rows[c][p]
	return cell, cell != nil
}
