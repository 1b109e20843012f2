package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRoundTrip(t *testing.T) {
	tick := Tick{
		Sequence:  42,
		Timestamp: 1_700_000_000_000_000_123,
		Price:     107.25,
		Quantity:  142,
	}
	tick.SetSymbol("MSFT")

	buf := EncodeTick(nil, tick)
	require.Len(t, buf, TickSize)

	got, ok := DecodeTick(buf)
	require.True(t, ok)
	assert.Equal(t, tick, got)
	assert.Equal(t, "MSFT", got.SymbolString())
}

func TestTickShortSymbolPadding(t *testing.T) {
	tick := Tick{Sequence: 1, Price: 250.0}
	tick.SetSymbol("V")

	got, ok := DecodeTick(EncodeTick(nil, tick))
	require.True(t, ok)
	assert.Equal(t, "V", got.SymbolString())
}

func TestDecodeTickUndersized(t *testing.T) {
	_, ok := DecodeTick(make([]byte, TickSize-1))
	assert.False(t, ok)
}

func TestRecoveryRequestRoundTrip(t *testing.T) {
	req := RecoveryRequest{MissedSequence: 9001}

	buf := EncodeRecoveryRequest(nil, req)
	require.Len(t, buf, RecoveryRequestSize)

	got, ok := DecodeRecoveryRequest(buf)
	require.True(t, ok)
	assert.Equal(t, req, got)

	_, ok = DecodeRecoveryRequest(buf[:RecoveryRequestSize-1])
	assert.False(t, ok)
}

func TestEncodeReusesBuffer(t *testing.T) {
	scratch := make([]byte, 64)
	tick := Tick{Sequence: 7, Price: 1.0}
	tick.SetSymbol("IBM")

	buf := EncodeTick(scratch, tick)
	assert.Len(t, buf, TickSize)
	assert.Same(t, &scratch[0], &buf[0], "encode should reuse the provided buffer")
}
