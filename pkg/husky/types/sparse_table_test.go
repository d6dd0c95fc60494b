package types

import "testing"

func TestSparseTable_GrowsAndStaysStable(t *testing.T) {
	table := NewSparseTable(func() *int {
		v := 0
		return &v
	})

	cell := table.Get(ChannelId(0), Progress(0))
	*cell = 7

	// Growing the table along both axes must not move the cell above.
	_ = table.Get(ChannelId(5), Progress(5))

	again := table.Get(ChannelId(0), Progress(0))
	if again != cell {
		t.Fatalf("expected the same cell pointer after growth")
	}
	if *again != 7 {
		t.Fatalf("expected value to survive growth, got %d", *again)
	}
}

func TestSparseTable_PeekDoesNotCreate(t *testing.T) {
	created := 0
	table := NewSparseTable(func() *int {
		created++
		v := 0
		return &v
	})

	if _, ok := table.Peek(ChannelId(2), Progress(2)); ok {
		t.Fatalf("expected Peek to report absence before any Get")
	}
	if created != 0 {
		t.Fatalf("expected Peek not to construct a cell")
	}

	table.Get(ChannelId(2), Progress(2))
	if _, ok := table.Peek(ChannelId(2), Progress(2)); !ok {
		t.Fatalf("expected Peek to find the cell after Get")
	}
	if created != 1 {
		t.Fatalf("expected exactly one cell constructed, got %d", created)
	}
}
