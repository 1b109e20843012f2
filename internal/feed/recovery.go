package feed

import (
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

// TCPRecoverer retrieves missed ticks from the publisher, one short-lived
// connection per request. Connects and reads carry no deadline; a wedged
// publisher stalls the subscriber, an inherited property of the protocol.
type TCPRecoverer struct {
	addr   string
	logger *zap.Logger
}

// NewTCPRecoverer targets the publisher's recovery listener at addr.
func NewTCPRecoverer(addr string, logger *zap.Logger) *TCPRecoverer {
	return &TCPRecoverer{addr: addr, logger: logger}
}

// Recover opens a fresh connection, sends one request and blocks for the
// reply. The publisher closing without payload means the sequence has aged
// out of its replay cache.
func (r *TCPRecoverer) Recover(missedSeq uint64) (protocol.Tick, error) {
	r.logger.Debug("requesting retransmission",
		zap.String("addr", r.addr),
		zap.Uint64("seq", missedSeq),
	)

	conn, err := net.Dial("tcp", r.addr)
	if err != nil {
		return protocol.Tick{}, fmt.Errorf("recovery connect failed: %w", err)
	}
	defer conn.Close()

	req := protocol.EncodeRecoveryRequest(nil, protocol.RecoveryRequest{MissedSequence: missedSeq})
	if _, err := conn.Write(req); err != nil {
		return protocol.Tick{}, fmt.Errorf("failed to send recovery request: %w", err)
	}

	buf := make([]byte, protocol.TickSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return protocol.Tick{}, fmt.Errorf("no recovery payload for seq %d: %w", missedSeq, err)
	}

	tick, _ := protocol.DecodeTick(buf)
	return tick, nil
}
