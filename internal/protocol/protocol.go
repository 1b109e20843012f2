package protocol

import (
	"encoding/binary"
	"math"
)

const (
	// TickSize is the wire size of an encoded Tick.
	TickSize = 32
	// RecoveryRequestSize is the wire size of an encoded RecoveryRequest.
	RecoveryRequestSize = 8
)

// Tick is one timestamped price observation on the feed. Sequence numbers
// are global across all symbols and strictly increase by 1 per tick.
type Tick struct {
	Sequence  uint64
	Timestamp uint64 // ns since epoch, captured right before emission
	Price     float64
	Quantity  uint32
	Symbol    [4]byte
}

// RecoveryRequest asks the publisher to replay exactly one missed tick.
type RecoveryRequest struct {
	MissedSequence uint64
}

// SymbolString returns the symbol code without trailing NUL padding.
func (t Tick) SymbolString() string {
	n := len(t.Symbol)
	for n > 0 && t.Symbol[n-1] == 0 {
		n--
	}
	return string(t.Symbol[:n])
}

// SetSymbol stores up to 4 bytes of the symbol code, NUL padded.
func (t *Tick) SetSymbol(sym string) {
	t.Symbol = [4]byte{}
	copy(t.Symbol[:], sym)
}

// EncodeTick serializes a tick into a fixed-size little-endian payload.
func EncodeTick(dst []byte, t Tick) []byte {
	if cap(dst) < TickSize {
		dst = make([]byte, TickSize)
	} else {
		dst = dst[:TickSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], t.Sequence)
	binary.LittleEndian.PutUint64(dst[8:16], t.Timestamp)
	binary.LittleEndian.PutUint64(dst[16:24], math.Float64bits(t.Price))
	binary.LittleEndian.PutUint32(dst[24:28], t.Quantity)
	copy(dst[28:32], t.Symbol[:])

	return dst
}

// DecodeTick parses a fixed-size tick payload.
func DecodeTick(src []byte) (Tick, bool) {
	if len(src) < TickSize {
		return Tick{}, false
	}
	t := Tick{
		Sequence:  binary.LittleEndian.Uint64(src[0:8]),
		Timestamp: binary.LittleEndian.Uint64(src[8:16]),
		Price:     math.Float64frombits(binary.LittleEndian.Uint64(src[16:24])),
		Quantity:  binary.LittleEndian.Uint32(src[24:28]),
	}
	copy(t.Symbol[:], src[28:32])
	return t, true
}

// EncodeRecoveryRequest serializes a recovery request.
func EncodeRecoveryRequest(dst []byte, r RecoveryRequest) []byte {
	if cap(dst) < RecoveryRequestSize {
		dst = make([]byte, RecoveryRequestSize)
	} else {
		dst = dst[:RecoveryRequestSize]
	}
	binary.LittleEndian.PutUint64(dst[0:8], r.MissedSequence)
	return dst
}

// DecodeRecoveryRequest parses a recovery request payload.
func DecodeRecoveryRequest(src []byte) (RecoveryRequest, bool) {
	if len(src) < RecoveryRequestSize {
		return RecoveryRequest{}, false
	}
	return RecoveryRequest{MissedSequence: binary.LittleEndian.Uint64(src[0:8])}, true
}
