// Package ringbuf provides the publisher's bounded replay cache. Ticks are
// indexed by sequence number modulo capacity, so recovery only needs the
// most recent window of the stream and memory stays fixed.
package ringbuf

import "github.com/jz1452/market-exchange-simulator/internal/protocol"

// Buffer is a fixed-capacity, sequence-indexed replay cache.
type Buffer struct {
	ticks    []protocol.Tick
	seqs     []uint64
	capacity uint64
	maxSeq   uint64
}

// New creates an empty buffer holding at most capacity ticks.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		ticks:    make([]protocol.Tick, capacity),
		seqs:     make([]uint64, capacity),
		capacity: uint64(capacity),
	}
}

// Push stores a tick, overwriting any older occupant of its slot. Never fails.
func (b *Buffer) Push(seq uint64, tick protocol.Tick) {
	idx := seq % b.capacity
	b.ticks[idx] = tick
	b.seqs[idx] = seq

	if seq > b.maxSeq {
		b.maxSeq = seq
	}
}

// Get retrieves a past tick by sequence number. The second return is false
// when the sequence has aged out of the buffer or was never stored; absence
// is the only failure signal.
func (b *Buffer) Get(seq uint64) (protocol.Tick, bool) {
	if b.maxSeq >= b.capacity && seq <= b.maxSeq-b.capacity {
		return protocol.Tick{}, false
	}

	idx := seq % b.capacity
	if b.seqs[idx] != seq {
		return protocol.Tick{}, false
	}
	return b.ticks[idx], true
}

// MaxSequence returns the highest sequence number pushed so far.
func (b *Buffer) MaxSequence() uint64 {
	return b.maxSeq
}
