// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Daily OHLCV bars
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	-- Saved backtest runs; trades and equity curve are msgpack encoded
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		kind TEXT NOT NULL,
		strategy TEXT NOT NULL,
		symbol TEXT NOT NULL,
		initial_capital REAL NOT NULL,
		trade_count INTEGER NOT NULL,
		total_return REAL NOT NULL,
		sharpe_ratio REAL,
		options TEXT NOT NULL,
		metrics TEXT NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol ON candles(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, strategy);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candle Methods
// ============================================================================

// SaveCandles saves candles to the database, replacing bars already stored
// for the same date.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return errors.NewConfigurationError("symbol", symbol, "must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, models.Day(c.Timestamp), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger := logging.FromContext(ctx)
	logger.Debug().Str("symbol", symbol).Int("bars", len(candles)).Msg("Candles saved")
	return nil
}

// GetCandles retrieves candles in date order. A zero from or to leaves that
// end of the range open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ?`
	args := []interface{}{normalizeSymbol(symbol)}
	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, models.Day(from))
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, models.Day(to))
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// Symbols lists every stored symbol with its bar count and date range.
func (s *SQLiteStore) Symbols(ctx context.Context) ([]SymbolInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		GROUP BY symbol
		ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var out []SymbolInfo
	for rows.Next() {
		var info SymbolInfo
		var first, last string
		if err := rows.Scan(&info.Symbol, &info.Bars, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		info.First = parseTimestamp(first)
		info.Last = parseTimestamp(last)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return out, nil
}

// ============================================================================
// Run Methods
// ============================================================================

// runPayload is the msgpack encoded part of a run.
type runPayload struct {
	Trades []models.Trade       `msgpack:"trades"`
	Equity []models.EquityPoint `msgpack:"equity"`
}

// SaveRun stores a run and returns its id. A new uuid is assigned when the
// run has none.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Kind == "" {
		run.Kind = "backtest"
	}

	options, err := json.Marshal(run.Options)
	if err != nil {
		return "", fmt.Errorf("failed to encode options: %w", err)
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	payload, err := msgpack.Marshal(runPayload{Trades: run.TradeLog.Trades, Equity: run.TradeLog.EquityCurve})
	if err != nil {
		return "", fmt.Errorf("failed to encode run payload: %w", err)
	}

	var sharpe sql.NullFloat64
	if run.Metrics.SharpeRatio.Defined {
		sharpe = sql.NullFloat64{Float64: run.Metrics.SharpeRatio.Value, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, created_at, kind, strategy, symbol, initial_capital,
			trade_count, total_return, sharpe_ratio, options, metrics, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt, run.Kind, run.TradeLog.Strategy, normalizeSymbol(run.TradeLog.Symbol),
		run.TradeLog.InitialCapital, run.Metrics.TradeCount, run.Metrics.TotalReturn, sharpe,
		string(options), string(metrics), payload)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	logger := logging.FromContext(ctx)
	logger.Debug().Str("run_id", run.ID).Str("kind", run.Kind).Int("trades", run.Metrics.TradeCount).Msg("Run saved")
	return run.ID, nil
}

// GetRun loads a saved run.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var options, metrics string
	var payload []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, kind, strategy, symbol, initial_capital, options, metrics, payload
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.CreatedAt, &run.Kind, &run.TradeLog.Strategy, &run.TradeLog.Symbol,
		&run.TradeLog.InitialCapital, &options, &metrics, &payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewDataError("run", id, "not found", errors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(options), &run.Options); err != nil {
		return nil, errors.NewDataError("run", id, "corrupt options", err)
	}
	if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
		return nil, errors.NewDataError("run", id, "corrupt metrics", err)
	}
	var p runPayload
	if err := msgpack.Unmarshal(payload, &p); err != nil {
		return nil, errors.NewDataError("run", id, "corrupt payload", err)
	}

	for i := range p.Trades {
		p.Trades[i].EntryDate = p.Trades[i].EntryDate.UTC()
		p.Trades[i].ExitDate = p.Trades[i].ExitDate.UTC()
	}
	for i := range p.Equity {
		p.Equity[i].Timestamp = p.Equity[i].Timestamp.UTC()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.TradeLog.Trades = p.Trades
	run.TradeLog.EquityCurve = p.Equity
	return &run, nil
}

// ListRuns returns saved runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `
		SELECT id, created_at, kind, strategy, symbol, trade_count, total_return, sharpe_ratio
		FROM runs WHERE 1=1`
	var args []interface{}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, normalizeSymbol(filter.Symbol))
	}
	if filter.Strategy != "" {
		query += " AND strategy = ?"
		args = append(args, filter.Strategy)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var sharpe sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Kind, &r.Strategy, &r.Symbol, &r.TradeCount, &r.TotalReturn, &sharpe); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		if sharpe.Valid {
			r.SharpeRatio = models.DefinedRatio(sharpe.Float64)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// parseTimestamp reads the text SQLite returns for aggregated DATETIME
// columns.
func parseTimestamp(s string) time.Time {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
