// Package strategy implements the mean-reversion trading engine that
// consumes the gap-resolved tick stream. Each symbol keeps a rolling window
// of the last 100 prices; once the window is warm, the engine buys dips
// below the lower Bollinger band and exits on reversion to the mean, a hard
// stop, or a time stop.
package strategy

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

const (
	// WindowSize is the number of prices required before a symbol trades.
	WindowSize = 100
	// OrderQty is the fixed notional multiplier per position.
	OrderQty = 100.0
	// MinStdDev floors the band width in flat markets.
	MinStdDev = 0.10

	entryBandWidth  = 2.0
	stopBandWidth   = 3.0
	stopLossMinHeld = 2
	timeStopHeld    = 50
)

// ExitReason labels why a position was closed.
type ExitReason string

const (
	ReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ReasonStopLoss   ExitReason = "STOP_LOSS"
	ReasonTimeStop   ExitReason = "TIME_STOP"
)

// Fill describes one executed trade, entry or exit.
type Fill struct {
	Symbol    string
	Side      string // "BUY" or "SELL"
	Reason    ExitReason
	Price     float64
	Quantity  int
	PnL       float64 // zero for entries
	Sequence  uint64
	Timestamp uint64
}

type symbolState struct {
	prices [WindowSize]float64
	count  int
	idx    int
	sum    float64

	long       bool
	entryPrice float64
	ticksHeld  int
	realized   float64
	trades     int
}

// lastPrice is the most recently folded price in the window.
func (st *symbolState) lastPrice() float64 {
	if st.count == 0 {
		return 0
	}
	if st.count < WindowSize {
		return st.prices[st.count-1]
	}
	return st.prices[(st.idx-1+WindowSize)%WindowSize]
}

// Engine owns all per-symbol state and the session ledger. It is driven by
// a single goroutine; no locking.
type Engine struct {
	logger  *zap.Logger
	symbols map[string]*symbolState
	ledger  *Ledger
	onFill  func(Fill)
}

// NewEngine creates an engine with an empty symbol map and a fresh ledger.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		logger:  logger,
		symbols: make(map[string]*symbolState),
		ledger:  &Ledger{},
	}
}

// SetFillHandler installs a hook invoked for every executed trade, used to
// journal fills to the blotter and the trade tape.
func (e *Engine) SetFillHandler(fn func(Fill)) {
	e.onFill = fn
}

// Ledger exposes the session's realized P&L accumulator.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// OnTick folds the price into the symbol's rolling window and, once the
// window is warm, evaluates the position state machine.
func (e *Engine) OnTick(t protocol.Tick) {
	sym := t.SymbolString()
	st, ok := e.symbols[sym]
	if !ok {
		st = &symbolState{}
		e.symbols[sym] = st
	}

	price := t.Price
	if st.count < WindowSize {
		st.prices[st.count] = price
		st.count++
		st.sum += price
	} else {
		st.sum -= st.prices[st.idx]
		st.prices[st.idx] = price
		st.sum += price
		st.idx = (st.idx + 1) % WindowSize
	}

	// No decisions until exactly WindowSize prices have been observed.
	if st.count < WindowSize {
		return
	}

	sma := st.sum / WindowSize
	variance := 0.0
	for _, p := range st.prices {
		variance += (p - sma) * (p - sma)
	}
	variance /= WindowSize
	stddev := math.Sqrt(variance)
	if stddev < MinStdDev {
		stddev = MinStdDev
	}

	if !st.long {
		if price <= sma-entryBandWidth*stddev {
			e.enter(sym, st, t, sma, stddev)
		}
		return
	}

	st.ticksHeld++

	// Exit checks in fixed priority order; the first match wins.
	switch {
	case price >= sma:
		e.exit(sym, st, t, ReasonTakeProfit)
	case price <= st.entryPrice-stopBandWidth*stddev && st.ticksHeld > stopLossMinHeld:
		e.exit(sym, st, t, ReasonStopLoss)
	case st.ticksHeld > timeStopHeld:
		e.exit(sym, st, t, ReasonTimeStop)
	}
}

func (e *Engine) enter(sym string, st *symbolState, t protocol.Tick, sma, stddev float64) {
	st.long = true
	st.entryPrice = t.Price
	st.ticksHeld = 0

	e.logger.Info("entry",
		zap.String("symbol", sym),
		zap.Float64("price", t.Price),
		zap.Float64("sma", sma),
		zap.Float64("band", entryBandWidth*stddev),
		zap.Uint64("seq", t.Sequence),
	)

	if e.onFill != nil {
		e.onFill(Fill{
			Symbol:    sym,
			Side:      "BUY",
			Price:     t.Price,
			Quantity:  OrderQty,
			Sequence:  t.Sequence,
			Timestamp: t.Timestamp,
		})
	}
}

func (e *Engine) exit(sym string, st *symbolState, t protocol.Tick, reason ExitReason) {
	pnl := (t.Price - st.entryPrice) * OrderQty
	st.realized += pnl
	st.trades++
	st.long = false
	e.ledger.Add(pnl)

	e.logger.Info("exit",
		zap.String("symbol", sym),
		zap.String("reason", string(reason)),
		zap.Float64("price", t.Price),
		zap.Float64("entry_price", st.entryPrice),
		zap.Float64("pnl", pnl),
		zap.Int("ticks_held", st.ticksHeld),
		zap.Uint64("seq", t.Sequence),
	)

	if e.onFill != nil {
		e.onFill(Fill{
			Symbol:    sym,
			Side:      "SELL",
			Reason:    reason,
			Price:     t.Price,
			Quantity:  OrderQty,
			PnL:       pnl,
			Sequence:  t.Sequence,
			Timestamp: t.Timestamp,
		})
	}
}

// OpenPosition is one still-open long in the shutdown report.
type OpenPosition struct {
	Symbol     string
	EntryPrice float64
	LastPrice  float64
	Unrealized float64
}

// Report summarizes session P&L.
type Report struct {
	Realized   float64
	Unrealized float64
	Total      float64
	Open       []OpenPosition
	Trades     int
}

// Report computes the shutdown accounting. Read-only: positions are marked
// to the last observed price but never mutated, so calling it twice yields
// identical numbers.
func (e *Engine) Report() Report {
	r := Report{Realized: e.ledger.Realized()}

	syms := make([]string, 0, len(e.symbols))
	for sym := range e.symbols {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	for _, sym := range syms {
		st := e.symbols[sym]
		r.Trades += st.trades
		if !st.long || st.count == 0 {
			continue
		}
		last := st.lastPrice()
		unrealized := (last - st.entryPrice) * OrderQty
		r.Unrealized += unrealized
		r.Open = append(r.Open, OpenPosition{
			Symbol:     sym,
			EntryPrice: st.entryPrice,
			LastPrice:  last,
			Unrealized: unrealized,
		})
	}

	r.Total = r.Realized + r.Unrealized
	return r
}
