// Package pricegen produces the synthetic per-symbol tick stream that feeds
// the publisher. Prices follow a random walk with occasional downward
// anomalies: a rare permanent collapse that rewrites the baseline, and a
// more frequent transient shock that is published but never written back,
// so the price rubber-bands on the next tick for that symbol.
package pricegen

import (
	"math/rand"
	"time"

	"github.com/jz1452/market-exchange-simulator/internal/protocol"
)

// NumSymbols is the size of the simulated universe.
const NumSymbols = 50

const (
	basePrice     = 100.0
	baseStep      = 7.0
	priceFloor    = 1.0
	walkRange     = 0.002 // +/- 0.2% per tick
	collapseOneIn = 500
	collapseMin   = 0.04
	collapseMax   = 0.07
	shockOneIn    = 100
	shockMin      = 0.015
	shockMax      = 0.030
)

var symbols = [NumSymbols]string{
	"AAPL", "MSFT", "GOOG", "AMZN", "META", "TSLA", "NVDA", "JPM",
	"JNJ", "V", "UNH", "PG", "HD", "DIS", "MA", "BAC",
	"VZ", "CRM", "XOM", "PFE", "NKE", "INTC", "T", "KO",
	"MRK", "PEP", "ABT", "WMT", "CVX", "CSCO", "MCD", "ABBV",
	"MDT", "BMY", "ACN", "AVGO", "TXN", "COST", "NEE", "QCOM",
	"DHR", "LIN", "PM", "UNP", "LOW", "HON", "UPS", "IBM",
	"SBUX", "CAT",
}

// Process owns the per-symbol price baselines and the global sequence
// counter. It is deterministic for a given seed.
type Process struct {
	rng       *rand.Rand
	baselines [NumSymbols]float64
	nextSeq   uint64
	now       func() time.Time
}

// New creates a process seeded for deterministic generation. Baselines
// start at 100, 107, 114, ... and sequence numbers start at 1.
func New(seed int64) *Process {
	p := &Process{
		rng:     rand.New(rand.NewSource(seed)),
		nextSeq: 1,
		now:     time.Now,
	}
	for i := range p.baselines {
		p.baselines[i] = basePrice + baseStep*float64(i)
	}
	return p
}

// Next generates the next tick: picks a symbol uniformly, walks its
// baseline, applies any anomaly and stamps the result with the next global
// sequence number. The timestamp is captured here, right before the caller
// hands the tick to the network.
func (p *Process) Next() protocol.Tick {
	idx := p.rng.Intn(NumSymbols)

	// Ordinary random walk. This delta is always persisted.
	delta := p.rng.Float64()*(2*walkRange) - walkRange
	p.baselines[idx] += p.baselines[idx] * delta
	if p.baselines[idx] < priceFloor {
		p.baselines[idx] = priceFloor
	}
	published := p.baselines[idx]

	if p.rng.Intn(collapseOneIn) == 0 {
		// Permanent collapse: the company took lasting damage. Written
		// back so the walk continues from the depressed level.
		depth := collapseMin + p.rng.Float64()*(collapseMax-collapseMin)
		p.baselines[idx] -= p.baselines[idx] * depth
		if p.baselines[idx] < priceFloor {
			p.baselines[idx] = priceFloor
		}
		published = p.baselines[idx]
	} else if p.rng.Intn(shockOneIn) == 0 {
		// Transient shock: published only, never written back, so the
		// next tick for this symbol snaps back to the baseline.
		depth := shockMin + p.rng.Float64()*(shockMax-shockMin)
		published -= published * depth
	}

	seq := p.nextSeq
	p.nextSeq++

	tick := protocol.Tick{
		Sequence:  seq,
		Timestamp: uint64(p.now().UnixNano()),
		Price:     published,
		Quantity:  uint32(100 + seq%50),
	}
	tick.SetSymbol(symbols[idx])
	return tick
}

// Symbols returns the simulated symbol universe.
func Symbols() []string {
	return symbols[:]
}
