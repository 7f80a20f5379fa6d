// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"stock-analysis/internal/backtest"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	Symbols(ctx context.Context) ([]SymbolInfo, error)

	// Backtest runs
	SaveRun(ctx context.Context, run *Run) (string, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)

	// Lifecycle
	Close() error
}

// SymbolInfo summarizes the stored history of one symbol.
type SymbolInfo struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Bars   int       `json:"bars" yaml:"bars"`
	First  time.Time `json:"first" yaml:"first"`
	Last   time.Time `json:"last" yaml:"last"`
}

// Run is a saved backtest result.
type Run struct {
	ID        string              `json:"id" yaml:"id"`
	CreatedAt time.Time           `json:"created_at" yaml:"created_at"`
	Kind      string              `json:"kind" yaml:"kind"` // backtest, walkforward
	Options   backtest.Options    `json:"options" yaml:"options"`
	Metrics   performance.Metrics `json:"metrics" yaml:"metrics"`
	TradeLog  models.TradeLog     `json:"trade_log" yaml:"trade_log"`
}

// RunSummary is the listing view of a saved run.
type RunSummary struct {
	ID          string       `json:"id" yaml:"id"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
	Kind        string       `json:"kind" yaml:"kind"`
	Strategy    string       `json:"strategy" yaml:"strategy"`
	Symbol      string       `json:"symbol" yaml:"symbol"`
	TradeCount  int          `json:"trade_count" yaml:"trade_count"`
	TotalReturn float64      `json:"total_return" yaml:"total_return"`
	SharpeRatio models.Ratio `json:"sharpe_ratio" yaml:"sharpe_ratio"`
}

// RunFilter represents filters for listing runs.
type RunFilter struct {
	Symbol   string
	Strategy string
	Limit    int
}
