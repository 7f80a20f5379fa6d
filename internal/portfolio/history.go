package portfolio

import (
	"sort"
	"time"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
)

// AlignReturns converts per-symbol candles into daily return series over
// the dates every symbol has a bar for. The returned dates are the ends of
// each return period.
func AlignReturns(series map[string][]models.Candle) (History, []time.Time, error) {
	if len(series) == 0 {
		return nil, nil, errors.NewConfigurationError("assets", nil, "at least one asset is required")
	}

	counts := make(map[time.Time]int)
	closes := make(map[string]map[time.Time]float64, len(series))
	for symbol, candles := range series {
		byDay := make(map[time.Time]float64, len(candles))
		for _, c := range candles {
			byDay[models.Day(c.Timestamp)] = c.Close
		}
		if len(byDay) == 0 {
			return nil, nil, errors.NewDataError("candles", symbol, "no stored bars", errors.ErrDataNotFound)
		}
		for d := range byDay {
			counts[d]++
		}
		closes[symbol] = byDay
	}

	var dates []time.Time
	for d, n := range counts {
		if n == len(series) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) < 3 {
		return nil, nil, errors.NewInsufficientDataError("common trading days", 3, len(dates))
	}

	history := make(History, len(series))
	for symbol, byDay := range closes {
		prices := make([]float64, len(dates))
		for i, d := range dates {
			prices[i] = byDay[d]
		}
		history[symbol] = performance.DailyReturns(prices)
	}
	return history, dates[1:], nil
}
