package store

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
)

// csvBar is one row of a daily price file. Headers are lower case:
// date,open,high,low,close,volume.
type csvBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ReadCandlesCSV parses daily bars and returns them in date order. Rows
// sharing a date keep the last one. The result is validated as a series.
func ReadCandlesCSV(r io.Reader, symbol string) ([]models.Candle, error) {
	var rows []*csvBar
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.NewDataError("csv", symbol, "failed to parse", err)
	}

	byDay := make(map[time.Time]models.Candle, len(rows))
	for i, row := range rows {
		day, err := parseDate(row.Date)
		if err != nil {
			return nil, errors.NewConfigurationError("csv", symbol, fmt.Sprintf("row %d: %v", i+2, err))
		}
		byDay[day] = models.Candle{
			Timestamp: day,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		}
	}

	candles := make([]models.Candle, 0, len(byDay))
	for _, c := range byDay {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })

	series := models.Series{Symbol: symbol, Candles: candles}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return candles, nil
}

// WriteCandlesCSV writes bars in the format ReadCandlesCSV accepts.
func WriteCandlesCSV(w io.Writer, candles []models.Candle) error {
	rows := make([]*csvBar, len(candles))
	for i, c := range candles {
		rows[i] = &csvBar{
			Date:   c.Timestamp.UTC().Format("2006-01-02"),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	return gocsv.Marshal(rows, w)
}
