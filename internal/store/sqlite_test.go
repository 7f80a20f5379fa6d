package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/backtest"
	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(symbol, strategy string) *Run {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	opts := backtest.DefaultOptions()
	opts.PartialProfitTaking = true
	opts.ProfitLevels = backtest.MustProfitLadder(backtest.ProfitLevel{Threshold: 0.1, Fraction: 1})

	return &Run{
		Options: opts,
		Metrics: performance.Metrics{
			TradeCount:  2,
			Wins:        1,
			Losses:      1,
			TotalReturn: 0.012,
			SharpeRatio: models.DefinedRatio(1.4),
			WinRate:     models.DefinedRatio(0.5),
		},
		TradeLog: models.TradeLog{
			Strategy:       strategy,
			Symbol:         symbol,
			InitialCapital: 100000,
			Trades: []models.Trade{
				{Strategy: strategy, Symbol: symbol, EntryDate: day, EntryPrice: 100, ExitDate: day.AddDate(0, 0, 3),
					ExitPrice: 110, Shares: 50, ExitReason: models.PartialProfit(0.1), PnL: 500, PnLPct: 0.1},
				{Strategy: strategy, Symbol: symbol, EntryDate: day.AddDate(0, 0, 5), EntryPrice: 100, ExitDate: day.AddDate(0, 0, 6),
					ExitPrice: 95, Shares: 60, ExitReason: models.Exit(models.ExitStopLoss), PnL: -300, PnLPct: -0.05},
			},
			EquityCurve: []models.EquityPoint{
				{Timestamp: day, Equity: 100000},
				{Timestamp: day.AddDate(0, 0, 6), Equity: 100200},
			},
		},
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("aapl", "sma_crossover")
	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, run.ID)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "backtest", got.Kind)
	assert.Equal(t, "AAPL", got.TradeLog.Symbol)
	assert.Equal(t, run.Options, got.Options)
	assert.Equal(t, run.Metrics.SharpeRatio, got.Metrics.SharpeRatio)
	assert.Equal(t, 2, got.Metrics.TradeCount)
	assert.Equal(t, run.TradeLog.Trades, got.TradeLog.Trades)
	assert.Equal(t, run.TradeLog.EquityCurve, got.TradeLog.EquityCurve)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataNotFound))
}

func TestListRunsFiltersNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, r := range []*Run{
		sampleRun("AAPL", "sma_crossover"),
		sampleRun("AAPL", "breakout"),
		sampleRun("MSFT", "sma_crossover"),
	} {
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.SaveRun(ctx, r)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "MSFT", all[0].Symbol)
	assert.Equal(t, models.DefinedRatio(1.4), all[0].SharpeRatio)

	aapl, err := s.ListRuns(ctx, RunFilter{Symbol: "aapl"})
	require.NoError(t, err)
	assert.Len(t, aapl, 2)

	sma, err := s.ListRuns(ctx, RunFilter{Strategy: "sma_crossover", Limit: 1})
	require.NoError(t, err)
	require.Len(t, sma, 1)
	assert.Equal(t, "MSFT", sma[0].Symbol)
}

func TestSymbolsSummarizesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCandles(ctx, "msft", generateTestCandles(5, 100, 1000)))
	require.NoError(t, s.SaveCandles(ctx, "AAPL", generateTestCandles(3, 100, 1000)))

	infos, err := s.Symbols(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "AAPL", infos[0].Symbol)
	assert.Equal(t, 3, infos[0].Bars)
	assert.Equal(t, "MSFT", infos[1].Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), infos[1].First)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), infos[1].Last)
}

func TestSaveCandlesRejectsBlankSymbol(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveCandles(context.Background(), "  ", generateTestCandles(1, 10, 10))
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestSavesLogThroughContextLogger(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf).Level(zerolog.DebugLevel))

	require.NoError(t, s.SaveCandles(ctx, "log", generateTestCandles(3, 100, 1000)))
	id, err := s.SaveRun(ctx, sampleRun("LOG", "breakout"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"symbol":"LOG"`)
	assert.Contains(t, out, `"bars":3`)
	assert.Contains(t, out, `"run_id":"`+id+`"`)
}
