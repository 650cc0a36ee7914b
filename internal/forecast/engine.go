// Package forecast produces on-demand demand predictions from the live
// per-product time series.
package forecast

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/series"
)

// z for an 80% confidence band (matches the batch path).
const confidenceZ = 1.2816

// minDistinctDays below which the engine answers a flat zero forecast
// instead of guessing from one or two observations.
const minDistinctDays = 3

// Result is the wire-ready forecast: integer, non-negative, one entry per
// horizon day.
type Result struct {
	Forecast []int `json:"forecast"`
	Lower    []int `json:"lower"`
	Upper    []int `json:"upper"`
}

type Engine struct {
	agg *series.Aggregator
	log *logrus.Logger
}

func NewEngine(agg *series.Aggregator, log *logrus.Logger) *Engine {
	return &Engine{agg: agg, log: log}
}

// Predict forecasts demand for the next horizonDays. Insufficient data is a
// zero forecast, never an error; a failed model fit degrades to naive
// persistence (last value, half, double).
func (e *Engine) Predict(productID uint, horizonDays int) Result {
	daily := e.agg.Daily(productID)
	if len(daily) < minDistinctDays {
		return zeroResult(horizonDays)
	}

	values := densify(daily)

	m, err := fitARIMA111(values)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"product_id": productID,
			"points":     len(values),
		}).WithError(err).Debug("arima fit failed, using naive forecast")
		return naiveResult(values[len(values)-1], horizonDays)
	}

	mean, se := m.forecast(horizonDays)
	res := Result{
		Forecast: make([]int, horizonDays),
		Lower:    make([]int, horizonDays),
		Upper:    make([]int, horizonDays),
	}
	for i := 0; i < horizonDays; i++ {
		res.Forecast[i] = clampRound(mean[i])
		res.Lower[i] = clampRound(mean[i] - confidenceZ*se[i])
		res.Upper[i] = clampRound(mean[i] + confidenceZ*se[i])
	}
	return res
}

// densify fills calendar-day gaps between the first and last observed day
// with zero, producing the evenly spaced series the model needs.
func densify(daily []series.Point) []float64 {
	first, last := daily[0].Day, daily[len(daily)-1].Day
	n := int(last.Sub(first)/(24*time.Hour)) + 1
	values := make([]float64, n)
	for _, p := range daily {
		idx := int(p.Day.Sub(first) / (24 * time.Hour))
		values[idx] = float64(p.Quantity)
	}
	return values
}

func naiveResult(last float64, horizonDays int) Result {
	res := Result{
		Forecast: make([]int, horizonDays),
		Lower:    make([]int, horizonDays),
		Upper:    make([]int, horizonDays),
	}
	for i := 0; i < horizonDays; i++ {
		res.Forecast[i] = clampRound(last)
		res.Lower[i] = clampRound(last / 2)
		res.Upper[i] = clampRound(last * 2)
	}
	return res
}

func zeroResult(horizonDays int) Result {
	return Result{
		Forecast: make([]int, horizonDays),
		Lower:    make([]int, horizonDays),
		Upper:    make([]int, horizonDays),
	}
}

// clampRound applies the numeric policy: no negative demand, integers only
// at the presentation boundary.
func clampRound(v float64) int {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v))
}
