package chaos

import (
	"math/rand"

	"go.uber.org/zap"
)

// Chaos provides deterministic loss injection on the publisher's multicast
// send path. Dropped ticks still advance the sequence counter and still land
// in the replay cache, so they remain recoverable.
type Chaos struct {
	cfg    *Config
	logger *zap.Logger
	rng    *rand.Rand
	drops  uint64
}

// New creates a new Chaos instance seeded from the config.
func New(cfg *Config, logger *zap.Logger) *Chaos {
	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// MaybeDrop returns true if the emission for seq should be dropped from the
// network send.
func (c *Chaos) MaybeDrop(op string, seq uint64) bool {
	if !c.cfg.Enabled || c.cfg.DropOneIn <= 0 {
		return false
	}

	drop := c.rng.Intn(c.cfg.DropOneIn) == 0
	if drop {
		c.drops++
		c.logger.Info("chaos drop injected",
			zap.String("op", op),
			zap.Uint64("seq", seq),
			zap.Uint64("total_drops", c.drops),
		)
	}

	return drop
}

// Drops returns the number of emissions dropped so far.
func (c *Chaos) Drops() uint64 {
	return c.drops
}
