package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

func tickWithSeq(seq uint64) protocol.Tick {
	t := protocol.Tick{Sequence: seq, Price: float64(seq) * 1.5, Quantity: 100}
	t.SetSymbol("AAPL")
	return t
}

func TestRetentionWindow(t *testing.T) {
	b := New(4)

	for seq := uint64(0); seq <= 5; seq++ {
		b.Push(seq, tickWithSeq(seq))
	}

	// Capacity 4, max seq 5: everything at or below 5-4 has aged out.
	_, ok := b.Get(0)
	assert.False(t, ok, "seq 0 should have aged out")
	_, ok = b.Get(1)
	assert.False(t, ok, "seq 1 should have aged out")

	for seq := uint64(2); seq <= 5; seq++ {
		got, ok := b.Get(seq)
		require.True(t, ok, "seq %d should still be cached", seq)
		assert.Equal(t, tickWithSeq(seq), got)
	}
}

func TestGetExactSequenceOnly(t *testing.T) {
	b := New(8)

	b.Push(10, tickWithSeq(10))

	// Seq 2 maps to the same slot but was never stored.
	_, ok := b.Get(2)
	assert.False(t, ok)

	got, ok := b.Get(10)
	require.True(t, ok)
	assert.Equal(t, uint64(10), got.Sequence)
}

func TestStaleSlotBeforeFullWrap(t *testing.T) {
	b := New(4)

	// Sparse pushes: only some slots are occupied.
	b.Push(1, tickWithSeq(1))
	b.Push(3, tickWithSeq(3))

	_, ok := b.Get(2)
	assert.False(t, ok, "never-stored sequence must miss")

	got, ok := b.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint64(3), got.Sequence)
}

func TestPushOverwritesSlot(t *testing.T) {
	b := New(4)

	b.Push(1, tickWithSeq(1))
	b.Push(5, tickWithSeq(5)) // same slot as 1

	_, ok := b.Get(1)
	assert.False(t, ok, "overwritten sequence must miss")

	got, ok := b.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint64(5), got.Sequence)
	assert.Equal(t, uint64(5), b.MaxSequence())
}
