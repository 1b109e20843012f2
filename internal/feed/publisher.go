// Package feed implements both ends of the market data transport: the
// publisher's multicast broadcast plus TCP recovery service, and the
// subscriber's gap-detecting receive loop.
package feed

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/jz1452/market-exchange-simulator/internal/chaos"
	"github.com/jz1452/market-exchange-simulator/internal/config"
	"github.com/jz1452/market-exchange-simulator/internal/eventloop"
	"github.com/jz1452/market-exchange-simulator/internal/netx"
	"github.com/jz1452/market-exchange-simulator/internal/pricegen"
	"github.com/jz1452/market-exchange-simulator/internal/protocol"
	"github.com/jz1452/market-exchange-simulator/internal/ringbuf"
)

const (
	tagRecoveryListener = iota + 1
	tagTickTimer
	tagReportTimer
	tagShutdown
)

const reportIntervalMs = 1000

// Publisher broadcasts the synthetic tick stream over multicast and serves
// point-to-point recovery requests from its replay cache. Everything runs on
// one goroutine driven by the event loop.
type Publisher struct {
	cfg    *config.Config
	logger *zap.Logger
	loop   *eventloop.Loop
	ring   *ringbuf.Buffer
	prices *pricegen.Process
	loss   *chaos.Chaos

	udpFD   int
	udpAddr *unix.SockaddrInet4
	tcpFD   int

	stopR int
	stopW int

	stopped bool
	loopErr error

	sentThisSec uint64
	lastTick    protocol.Tick
	sendBuf     []byte
}

// NewPublisher opens the multicast send path and the recovery listener and
// registers everything with a fresh event loop. Any setup failure is
// returned for the caller to map to a nonzero exit.
func NewPublisher(cfg *config.Config, logger *zap.Logger, prices *pricegen.Process, loss *chaos.Chaos) (*Publisher, error) {
	group, port, err := splitHostPort(cfg.MulticastAddr)
	if err != nil {
		return nil, err
	}

	udpFD, udpAddr, err := netx.NewMulticastSender(group, port)
	if err != nil {
		return nil, err
	}

	tcpFD, err := netx.NewTCPListener(cfg.RecoveryPort)
	if err != nil {
		unix.Close(udpFD)
		return nil, err
	}

	loop, err := eventloop.New()
	if err != nil {
		unix.Close(udpFD)
		unix.Close(tcpFD)
		return nil, err
	}

	p := &Publisher{
		cfg:     cfg,
		logger:  logger,
		loop:    loop,
		ring:    ringbuf.New(cfg.RingCapacity),
		prices:  prices,
		loss:    loss,
		udpFD:   udpFD,
		udpAddr: udpAddr,
		tcpFD:   tcpFD,
		sendBuf: make([]byte, protocol.TickSize),
	}

	if err := p.register(); err != nil {
		p.Close()
		return nil, err
	}

	logger.Info("publisher ready",
		zap.String("multicast_addr", cfg.MulticastAddr),
		zap.Int("recovery_port", cfg.RecoveryPort),
		zap.Int("ring_capacity", cfg.RingCapacity),
		zap.Int("tick_interval_ms", cfg.TickIntervalMs),
		zap.Int("tick_batch", cfg.TickBatch),
	)

	return p, nil
}

func (p *Publisher) register() error {
	if err := p.loop.RegisterRead(p.tcpFD, tagRecoveryListener); err != nil {
		return err
	}
	if _, err := p.loop.RegisterTimer(p.cfg.TickIntervalMs, tagTickTimer); err != nil {
		return err
	}
	if _, err := p.loop.RegisterTimer(reportIntervalMs, tagReportTimer); err != nil {
		return err
	}

	// Self-pipe so Shutdown can wake a blocked Poll from another goroutine.
	fds := make([]int, 2)
	if err := unix.Pipe(fds); err != nil {
		return fmt.Errorf("failed to create shutdown pipe: %w", err)
	}
	p.stopR, p.stopW = fds[0], fds[1]
	return p.loop.RegisterRead(p.stopR, tagShutdown)
}

// Run drives the event loop until Shutdown is called or the recovery
// listener fails.
func (p *Publisher) Run() error {
	p.logger.Info("entering event loop")
	for !p.stopped {
		if err := p.loop.Poll(p.onEvent); err != nil {
			return err
		}
		if p.loopErr != nil {
			return p.loopErr
		}
	}
	return nil
}

// Shutdown asks the run loop to stop after the current batch. Safe to call
// from another goroutine.
func (p *Publisher) Shutdown() {
	var b [1]byte
	_, _ = unix.Write(p.stopW, b[:])
}

// Close releases all descriptors owned by the publisher.
func (p *Publisher) Close() {
	p.loop.Close()
	if p.udpFD > 0 {
		unix.Close(p.udpFD)
	}
	if p.tcpFD > 0 {
		unix.Close(p.tcpFD)
	}
	if p.stopR > 0 {
		unix.Close(p.stopR)
		unix.Close(p.stopW)
	}
}

func (p *Publisher) onEvent(tag int, eof bool) {
	switch tag {
	case tagTickTimer:
		p.emitBatch()
	case tagReportTimer:
		p.report()
	case tagRecoveryListener:
		p.serveRecovery()
	case tagShutdown:
		p.stopped = true
	}
}

// emitBatch generates one fixed-size batch of ticks. Every tick lands in
// the replay cache and advances the sequence counter even when the network
// send is dropped by the loss simulation.
func (p *Publisher) emitBatch() {
	for i := 0; i < p.cfg.TickBatch; i++ {
		tick := p.prices.Next()
		p.ring.Push(tick.Sequence, tick)

		if p.loss.MaybeDrop("multicast_send", tick.Sequence) {
			p.lastTick = tick
			continue
		}

		payload := protocol.EncodeTick(p.sendBuf, tick)
		if err := unix.Sendto(p.udpFD, payload, 0, p.udpAddr); err != nil {
			p.logger.Warn("multicast send failed",
				zap.Uint64("seq", tick.Sequence),
				zap.Error(err),
			)
		} else {
			p.sentThisSec++
		}
		p.lastTick = tick
	}
}

func (p *Publisher) report() {
	p.logger.Info("publisher throughput",
		zap.Uint64("msgs_per_sec", p.sentThisSec),
		zap.String("last_symbol", p.lastTick.SymbolString()),
		zap.Float64("last_price", p.lastTick.Price),
		zap.Uint64("last_seq", p.lastTick.Sequence),
	)
	p.sentThisSec = 0
}

// serveRecovery handles exactly one request/response pair on a freshly
// accepted connection, blocking the event loop for the duration of the
// exchange. A malformed request stops the publisher.
func (p *Publisher) serveRecovery() {
	clientFD, _, err := unix.Accept(p.tcpFD)
	if err != nil {
		// The listener is nonblocking; a raced-away connection is not an error.
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		p.logger.Error("recovery accept failed", zap.Error(err))
		return
	}
	defer unix.Close(clientFD)

	// The accepted socket is blocking: the exchange is a whole-message
	// read followed by at most one write.
	req := make([]byte, protocol.RecoveryRequestSize)
	if err := readFullFD(clientFD, req); err != nil {
		p.logger.Error("failed to read recovery request", zap.Error(err))
		p.loopErr = fmt.Errorf("recovery listener failed: %w", err)
		return
	}

	request, _ := protocol.DecodeRecoveryRequest(req)
	p.logger.Info("recovery request received", zap.Uint64("seq", request.MissedSequence))

	tick, ok := p.ring.Get(request.MissedSequence)
	if !ok {
		// Aged out of the cache or never stored: close without payload,
		// absence is the only failure signal on the wire.
		p.logger.Warn("requested tick no longer in replay cache",
			zap.Uint64("seq", request.MissedSequence),
		)
		return
	}

	payload := protocol.EncodeTick(nil, tick)
	if _, err := unix.Write(clientFD, payload); err != nil {
		p.logger.Error("failed to send recovered tick",
			zap.Uint64("seq", request.MissedSequence),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("recovered tick sent", zap.Uint64("seq", request.MissedSequence))
}

func readFullFD(fd int, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := unix.Read(fd, buf[read:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		read += n
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}
