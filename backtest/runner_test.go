package backtest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alpaquero/alpaquero/history"
	"github.com/alpaquero/alpaquero/journal"
	"github.com/alpaquero/alpaquero/market"
)

// seedStore writes the bars under a temp dir and returns a store
// pointed at it.
func seedStore(t *testing.T, series ...*market.Series) *history.CSVStore {
	t.Helper()
	store := history.NewCSVStore(t.TempDir())
	for _, s := range series {
		require.NoError(t, store.SaveSeries(s))
	}
	return store
}

func TestRunnerMissingStore(t *testing.T) {
	t.Parallel()

	r := &Runner{Config: testConfig("AAPL")}
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Store is required")
}

func TestRunnerMissingData(t *testing.T) {
	t.Parallel()

	r := &Runner{
		Store:  seedStore(t),
		Config: testConfig("AAPL"),
	}
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrDataUnavailable)
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	bars := append(entryBars("AAPL"),
		mkBar("AAPL", 5, 100, 112, 99, 111), // take profit at 110
	)
	r := &Runner{
		Store:  seedStore(t, mkSeries(t, "AAPL", bars)),
		Config: testConfig("AAPL"),
	}

	rpt, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rpt.Trades)
	assert.Equal(t, 1, rpt.Wins)
	assert.True(t, rpt.Start.Equal(bars[0].Time))
	assert.True(t, rpt.End.Equal(bars[len(bars)-1].Time))
}

func TestRunnerWindow(t *testing.T) {
	t.Parallel()

	bars := entryBars("AAPL")
	r := &Runner{
		Store:  seedStore(t, mkSeries(t, "AAPL", bars)),
		Config: testConfig("AAPL"),
		From:   bars[1].Time,
		To:     bars[4].Time, // exclusive, drops the crossing bar
	}

	rpt, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rpt.Trades)
	assert.True(t, rpt.Start.Equal(bars[1].Time))
	assert.True(t, rpt.End.Equal(bars[3].Time))
}

func TestRunnerRecordsRun(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer j.Close()

	cfg := testConfig("AAPL")
	cfg.Journal = j

	bars := append(entryBars("AAPL"),
		mkBar("AAPL", 5, 100, 112, 99, 111),
	)
	r := &Runner{
		Store:  seedStore(t, mkSeries(t, "AAPL", bars)),
		Config: cfg,
	}

	rpt, err := r.Run(context.Background())
	require.NoError(t, err)

	runs, err := j.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rpt.RunID, runs[0].RunID)
	assert.Equal(t, "sma-cross", runs[0].Strategy)
	assert.Equal(t, rpt.Trades, runs[0].Trades)
	assert.InDelta(t, rpt.FinalEquity, runs[0].FinalEquity, 1e-9)
}

func TestRunnerContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{
		Store:  seedStore(t, mkSeries(t, "AAPL", entryBars("AAPL"))),
		Config: testConfig("AAPL"),
	}

	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
