package chaos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDisabledNeverDrops(t *testing.T) {
	c := New(&Config{Enabled: false, DropOneIn: 1, Seed: 1}, zap.NewNop())

	for i := 0; i < 1000; i++ {
		assert.False(t, c.MaybeDrop("multicast_send", uint64(i)))
	}
	assert.Equal(t, uint64(0), c.Drops())
}

func TestDropRateRoughlyMatchesConfig(t *testing.T) {
	c := New(&Config{Enabled: true, DropOneIn: 2, Seed: 42}, zap.NewNop())

	drops := 0
	for i := 0; i < 10000; i++ {
		if c.MaybeDrop("multicast_send", uint64(i)) {
			drops++
		}
	}
	assert.Greater(t, drops, 4000)
	assert.Less(t, drops, 6000)
	assert.Equal(t, uint64(drops), c.Drops())
}

func TestDeterministicForSeed(t *testing.T) {
	a := New(&Config{Enabled: true, DropOneIn: 100, Seed: 7}, zap.NewNop())
	b := New(&Config{Enabled: true, DropOneIn: 100, Seed: 7}, zap.NewNop())

	for i := 0; i < 5000; i++ {
		assert.Equal(t, a.MaybeDrop("x", uint64(i)), b.MaybeDrop("x", uint64(i)))
	}
}
