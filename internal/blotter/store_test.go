package blotter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jz1452/market-exchange-simulator/internal/strategy"
)

func TestRecordAndListFills(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blotter_test_*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "blotter.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	entry := strategy.Fill{
		Symbol:    "AAPL",
		Side:      "BUY",
		Price:     99.0,
		Quantity:  100,
		Sequence:  1200,
		Timestamp: 1_700_000_000_000_000_000,
	}
	exit := strategy.Fill{
		Symbol:    "AAPL",
		Side:      "SELL",
		Reason:    strategy.ReasonTakeProfit,
		Price:     100.2,
		Quantity:  100,
		PnL:       120.0,
		Sequence:  1260,
		Timestamp: 1_700_000_000_500_000_000,
	}

	entryID, err := store.RecordFill(ctx, entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entryID)

	exitID, err := store.RecordFill(ctx, exit)
	require.NoError(t, err)
	assert.NotEqual(t, entryID, exitID)

	fills, err := store.ListFills(ctx, 100)
	require.NoError(t, err)
	require.Len(t, fills, 2)

	assert.Equal(t, "BUY", fills[0].Side)
	assert.Equal(t, int64(1200), fills[0].Sequence)
	assert.Equal(t, "", fills[0].Reason)

	assert.Equal(t, "SELL", fills[1].Side)
	assert.Equal(t, string(strategy.ReasonTakeProfit), fills[1].Reason)
	assert.InDelta(t, 120.0, fills[1].PnL, 1e-9)
	assert.Equal(t, int64(1260), fills[1].Sequence)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "blotter_dir_test_*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "data", "blotter.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}
