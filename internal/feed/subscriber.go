package feed

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

// PacketConn is the subset of *net.UDPConn the subscriber reads from.
type PacketConn interface {
	Read(b []byte) (n int, err error)
	SetReadDeadline(t time.Time) error
}

// Recoverer fetches exactly one missed tick over the reliable side channel.
type Recoverer interface {
	Recover(missedSeq uint64) (protocol.Tick, error)
}

// TickHandler consumes the gap-resolved, in-order tick stream.
type TickHandler func(protocol.Tick)

// stopPollInterval bounds how long a blocked receive can delay observing
// the shutdown flag.
const stopPollInterval = 250 * time.Millisecond

// Subscriber consumes the multicast stream, detects sequence gaps and fills
// them through its Recoverer before handing ticks to the handler. Single
// goroutine; recovery round-trips stall feed processing by design.
type Subscriber struct {
	conn      PacketConn
	recoverer Recoverer
	logger    *zap.Logger
	now       func() time.Time

	expected uint64

	recvThisSec uint64
	minLatUs    float64
	maxLatUs    float64
	sumLatUs    float64
	lastReport  time.Time
	lastTick    protocol.Tick
}

// NewSubscriber wraps an already-joined multicast connection.
func NewSubscriber(conn PacketConn, recoverer Recoverer, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		conn:      conn,
		recoverer: recoverer,
		logger:    logger,
		now:       time.Now,
		minLatUs:  1e9,
	}
}

// Run consumes the feed until stop is set or the receive path fails. Every
// missing sequence is recovered in ascending order and delivered to handle
// before the tick that revealed the gap; a failed recovery leaves that one
// sequence permanently unfilled.
func (s *Subscriber) Run(stop *atomic.Bool, handle TickHandler) error {
	buf := make([]byte, protocol.TickSize)
	s.lastReport = s.now()

	for {
		if stop != nil && stop.Load() {
			return nil
		}

		// Short deadline so the loop can observe the shutdown flag; the
		// recovery exchanges themselves stay deadline-free.
		_ = s.conn.SetReadDeadline(time.Now().Add(stopPollInterval))
		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if stop != nil && stop.Load() {
				return nil
			}
			return fmt.Errorf("multicast receive failed: %w", err)
		}

		if n != protocol.TickSize {
			s.logger.Debug("ignoring undersized datagram", zap.Int("bytes", n))
			continue
		}

		tick, _ := protocol.DecodeTick(buf)

		if s.expected != 0 && tick.Sequence > s.expected {
			s.recoverGap(tick.Sequence, handle)
		}

		s.observe(tick)
		s.expected = tick.Sequence + 1
		handle(tick)
	}
}

// Expected returns the next sequence number the subscriber is waiting for,
// 0 before the first tick has been seen.
func (s *Subscriber) Expected() uint64 {
	return s.expected
}

func (s *Subscriber) recoverGap(received uint64, handle TickHandler) {
	s.logger.Warn("gap detected",
		zap.Uint64("expected", s.expected),
		zap.Uint64("received", received),
		zap.Uint64("missing", received-s.expected),
	)

	for missed := s.expected; missed < received; missed++ {
		tick, err := s.recoverer.Recover(missed)
		if err != nil {
			// Exactly one attempt per sequence; this tick stays absent
			// from the strategy's view.
			s.logger.Error("recovery failed",
				zap.Uint64("seq", missed),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("recovered tick",
			zap.Uint64("seq", tick.Sequence),
			zap.Float64("price", tick.Price),
		)
		handle(tick)
	}
}

func (s *Subscriber) observe(tick protocol.Tick) {
	nowNs := uint64(s.now().UnixNano())
	latUs := float64(nowNs-tick.Timestamp) / 1000.0

	s.recvThisSec++
	if latUs < s.minLatUs {
		s.minLatUs = latUs
	}
	if latUs > s.maxLatUs {
		s.maxLatUs = latUs
	}
	s.sumLatUs += latUs
	s.lastTick = tick

	now := s.now()
	if now.Sub(s.lastReport) >= time.Second {
		s.logger.Info("subscriber throughput",
			zap.Uint64("msgs_per_sec", s.recvThisSec),
			zap.Float64("latency_min_us", s.minLatUs),
			zap.Float64("latency_max_us", s.maxLatUs),
			zap.Float64("latency_avg_us", s.sumLatUs/float64(s.recvThisSec)),
			zap.String("last_symbol", s.lastTick.SymbolString()),
			zap.Float64("last_price", s.lastTick.Price),
		)
		s.recvThisSec = 0
		s.minLatUs = 1e9
		s.maxLatUs = 0
		s.sumLatUs = 0
		s.lastReport = now
	}
}
