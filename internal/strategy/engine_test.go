package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

func newTestEngine(t *testing.T) (*Engine, *[]Fill) {
	t.Helper()
	engine := NewEngine(zap.NewNop())
	fills := &[]Fill{}
	engine.SetFillHandler(func(f Fill) {
		*fills = append(*fills, f)
	})
	return engine, fills
}

func feedPrice(e *Engine, sym string, seq uint64, price float64) {
	tick := protocol.Tick{Sequence: seq, Price: price, Quantity: 100}
	tick.SetSymbol(sym)
	e.OnTick(tick)
}

func warmUp(e *Engine, sym string, price float64) uint64 {
	for i := 0; i < WindowSize; i++ {
		feedPrice(e, sym, uint64(i+1), price)
	}
	return WindowSize
}

func TestWarmUpGating(t *testing.T) {
	engine, fills := newTestEngine(t)

	// 99 observations, one of them absurdly low: still warming up, no trade.
	for i := 0; i < WindowSize-1; i++ {
		price := 100.0
		if i == 50 {
			price = 1.0
		}
		feedPrice(engine, "AAPL", uint64(i+1), price)
	}

	assert.Empty(t, *fills, "no entry or exit before 100 observations")
	assert.Equal(t, 0.0, engine.Ledger().Realized())
}

func TestFlooredBandArithmetic(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "AAPL", 100.0)

	// Flat window: raw stddev 0 floors to 0.10, so the entry band sits
	// 0.20 under the mean. A dip that stays above it must not trigger.
	seq++
	feedPrice(engine, "AAPL", seq, 99.81)
	assert.Empty(t, *fills)

	// A clear break of the band opens the long.
	seq++
	feedPrice(engine, "AAPL", seq, 99.0)
	require.Len(t, *fills, 1)
	entry := (*fills)[0]
	assert.Equal(t, "BUY", entry.Side)
	assert.Equal(t, 99.0, entry.Price)
	assert.Equal(t, OrderQty, float64(entry.Quantity))

	// Reversion to the mean takes profit.
	seq++
	feedPrice(engine, "AAPL", seq, 100.5)
	require.Len(t, *fills, 2)
	exit := (*fills)[1]
	assert.Equal(t, "SELL", exit.Side)
	assert.Equal(t, ReasonTakeProfit, exit.Reason)
	assert.InDelta(t, (100.5-99.0)*OrderQty, exit.PnL, 1e-9)
	assert.InDelta(t, 150.0, engine.Ledger().Realized(), 1e-9)
}

func TestStopLossRequiresMinimumHold(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "TSLA", 100.0)

	seq++
	feedPrice(engine, "TSLA", seq, 99.0)
	require.Len(t, *fills, 1, "expected entry")

	// Two plummeting ticks inside the hold guard: no stop yet.
	for i := 0; i < 2; i++ {
		seq++
		feedPrice(engine, "TSLA", seq, 90.0)
		assert.Len(t, *fills, 1, "stop must not fire while ticks held <= 2")
	}

	// Third tick held: guard releases, stop loss fires.
	seq++
	feedPrice(engine, "TSLA", seq, 90.0)
	require.Len(t, *fills, 2)
	exit := (*fills)[1]
	assert.Equal(t, ReasonStopLoss, exit.Reason)
	assert.InDelta(t, (90.0-99.0)*OrderQty, exit.PnL, 1e-9)
}

func TestExitPriorityTakeProfitBeatsTimeStop(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "MSFT", 100.0)

	seq++
	feedPrice(engine, "MSFT", seq, 99.0)
	require.Len(t, *fills, 1, "expected entry")

	// 50 quiet ticks: below the mean, above the stop, inside the time stop.
	for i := 0; i < 50; i++ {
		seq++
		feedPrice(engine, "MSFT", seq, 99.6)
	}
	require.Len(t, *fills, 1, "no exit while every condition is false")

	// 51st held tick: the time stop is now eligible AND the price is back
	// above the mean. Take profit must win the priority race.
	seq++
	feedPrice(engine, "MSFT", seq, 101.0)
	require.Len(t, *fills, 2)
	exit := (*fills)[1]
	assert.Equal(t, ReasonTakeProfit, exit.Reason)
	assert.InDelta(t, (101.0-99.0)*OrderQty, exit.PnL, 1e-9)
}

func TestTimeStopClosesStagnantPosition(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "NVDA", 100.0)

	seq++
	feedPrice(engine, "NVDA", seq, 99.0)
	require.Len(t, *fills, 1, "expected entry")

	// The price sits below the mean without hitting the stop until the
	// time stop forces the exit on the 51st held tick.
	for i := 0; i < 51; i++ {
		seq++
		feedPrice(engine, "NVDA", seq, 99.6)
	}

	require.Len(t, *fills, 2)
	exit := (*fills)[1]
	assert.Equal(t, ReasonTimeStop, exit.Reason)
	assert.InDelta(t, (99.6-99.0)*OrderQty, exit.PnL, 1e-9)
}

func TestShutdownReportIdempotent(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "AMZN", 100.0)

	seq++
	feedPrice(engine, "AMZN", seq, 99.0)
	require.Len(t, *fills, 1, "expected entry")

	first := engine.Report()
	second := engine.Report()
	assert.Equal(t, first, second, "report must not mutate positions")

	require.Len(t, first.Open, 1)
	assert.Equal(t, "AMZN", first.Open[0].Symbol)
	assert.Equal(t, 99.0, first.Open[0].EntryPrice)
	assert.Equal(t, 99.0, first.Open[0].LastPrice)
	assert.InDelta(t, 0.0, first.Open[0].Unrealized, 1e-9)
	assert.Equal(t, first.Realized+first.Unrealized, first.Total)

	// The position is still live: a reversion tick closes it normally.
	seq++
	feedPrice(engine, "AMZN", seq, 100.5)
	require.Len(t, *fills, 2)
	assert.Equal(t, ReasonTakeProfit, (*fills)[1].Reason)
}

func TestUnrealizedMarksToLastObservedPrice(t *testing.T) {
	engine, fills := newTestEngine(t)
	seq := warmUp(engine, "META", 100.0)

	seq++
	feedPrice(engine, "META", seq, 99.0)
	require.Len(t, *fills, 1)

	seq++
	feedPrice(engine, "META", seq, 99.4)

	report := engine.Report()
	require.Len(t, report.Open, 1)
	assert.Equal(t, 99.4, report.Open[0].LastPrice)
	assert.InDelta(t, (99.4-99.0)*OrderQty, report.Open[0].Unrealized, 1e-9)
	assert.InDelta(t, report.Open[0].Unrealized, report.Unrealized, 1e-9)
}

func TestSymbolsAreIndependent(t *testing.T) {
	engine, fills := newTestEngine(t)

	warmUp(engine, "AAPL", 100.0)
	feedPrice(engine, "AAPL", 200, 99.0)
	require.Len(t, *fills, 1)

	// A cold symbol at the same price must not trade.
	feedPrice(engine, "GOOG", 201, 99.0)
	assert.Len(t, *fills, 1)
}
