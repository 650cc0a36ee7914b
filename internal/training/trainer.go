// Package training runs the periodic batch forecasting job: once per ISO
// week it fits a regression per product over (week, year) features and
// upserts forecast records for the coming weeks.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

const confidenceZ = 1.2816

// PeriodKey derives the training dedup key from a point in time, e.g.
// "2026-W35".
func PeriodKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// RunResult summarizes one scheduler tick.
type RunResult struct {
	Ran       bool    `json:"ran"`
	PeriodKey string  `json:"period_key"`
	Trained   int     `json:"trained"`
	Skipped   int     `json:"skipped"`
	Accuracy  float64 `json:"accuracy"`
}

type Trainer struct {
	db   *gorm.DB
	lock RunLock
	log  *logrus.Logger

	minSales   int
	aheadWeeks int
	budget     time.Duration
}

func NewTrainer(db *gorm.DB, lock RunLock, log *logrus.Logger, minSales, aheadWeeks int, budget time.Duration) *Trainer {
	return &Trainer{
		db:         db,
		lock:       lock,
		log:        log,
		minSales:   minSales,
		aheadWeeks: aheadWeeks,
		budget:     budget,
	}
}

// RunOnce executes one batch run for the period containing now.
//
// Gates: an existing TrainingRun for the period makes the call a no-op
// (duplicate timers and manual triggers are safe); the run lease excludes
// concurrent runs and is released on every path. All forecast upserts commit
// atomically with the TrainingRun marker, so a failed or budget-expired run
// leaves no marker and the period stays eligible for retry.
func (t *Trainer) RunOnce(ctx context.Context, now time.Time) (RunResult, error) {
	period := PeriodKey(now)

	done, err := t.periodTrained(ctx, period)
	if err != nil {
		return RunResult{}, err
	}
	if done {
		return RunResult{Ran: false, PeriodKey: period}, nil
	}

	release, err := t.lock.Acquire(ctx)
	if err != nil {
		return RunResult{}, err
	}
	defer release()

	// Re-check under the lease: another instance may have just completed.
	done, err = t.periodTrained(ctx, period)
	if err != nil {
		return RunResult{}, err
	}
	if done {
		return RunResult{Ran: false, PeriodKey: period}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.budget)
	defer cancel()

	res := RunResult{Ran: true, PeriodKey: period}
	err = t.db.WithContext(runCtx).Transaction(func(tx *gorm.DB) error {
		var products []model.Product
		if err := tx.Find(&products).Error; err != nil {
			return err
		}

		periods := futurePeriods(now, t.aheadWeeks)
		var accSum float64
		for _, p := range products {
			// Budget expiry aborts the run; the transaction rolls back
			// and no marker is written, so the whole period retries.
			if err := runCtx.Err(); err != nil {
				return fmt.Errorf("training budget exceeded: %w", err)
			}

			var sales []model.Sale
			if err := tx.Where("product_id = ?", p.ID).Find(&sales).Error; err != nil {
				return err
			}
			if len(sales) < t.minSales {
				res.Skipped++
				continue
			}

			preds, accuracy := fitAndPredict(sales, periods)
			for i, fp := range periods {
				f := model.Forecast{
					ProductID: p.ID,
					PeriodKey: fp.key,
					Predicted: preds[i].mean,
					Lower:     preds[i].lower,
					Upper:     preds[i].upper,
				}
				if err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "product_id"}, {Name: "period_key"}},
					DoUpdates: clause.AssignmentColumns(
						[]string{"predicted", "lower", "upper", "updated_at"}),
				}).Create(&f).Error; err != nil {
					return err
				}
			}
			accSum += accuracy
			res.Trained++
		}

		if res.Trained > 0 {
			res.Accuracy = accSum / float64(res.Trained)
		}
		return tx.Create(&model.TrainingRun{
			PeriodKey: period,
			Accuracy:  res.Accuracy,
			TrainedAt: now.UTC(),
		}).Error
	})
	if err != nil {
		return RunResult{}, err
	}
	return res, nil
}

func (t *Trainer) periodTrained(ctx context.Context, period string) (bool, error) {
	var n int64
	err := t.db.WithContext(ctx).Model(&model.TrainingRun{}).
		Where("period_key = ?", period).
		Count(&n).Error
	return n > 0, err
}

type futurePeriod struct {
	week, year int
	key        string
}

// futurePeriods lists the next n ISO weeks after now.
func futurePeriods(now time.Time, n int) []futurePeriod {
	out := make([]futurePeriod, 0, n)
	cursor := now.UTC()
	for i := 0; i < n; i++ {
		cursor = cursor.AddDate(0, 0, 7)
		year, week := cursor.ISOWeek()
		out = append(out, futurePeriod{week: week, year: year, key: PeriodKey(cursor)})
	}
	return out
}

type prediction struct {
	mean, lower, upper float64
}

// fitAndPredict regresses quantity on (week, year) and predicts each future
// period, clamped at zero. Returns the in-sample R² as the run accuracy
// contribution. Degenerate feature matrices (all sales in one week) fall
// back to the historical mean with a half/double band.
func fitAndPredict(sales []model.Sale, periods []futurePeriod) ([]prediction, float64) {
	y := make([]float64, len(sales))
	X := mat.NewDense(len(sales), 3, nil)
	for i, s := range sales {
		year, week := s.SoldAt.UTC().ISOWeek()
		X.Set(i, 0, 1)
		X.Set(i, 1, float64(week))
		X.Set(i, 2, float64(year))
		y[i] = float64(s.Quantity)
	}

	coef, err := olsSolve(X, y)
	if err != nil || !finiteAll(coef...) {
		m := stat.Mean(y, nil)
		out := make([]prediction, len(periods))
		for i := range periods {
			out[i] = prediction{
				mean:  math.Max(0, m),
				lower: math.Max(0, m/2),
				upper: math.Max(0, m*2),
			}
		}
		return out, 0
	}

	// Residual spread for the confidence band, R² for the accuracy figure.
	var rss float64
	for i, s := range sales {
		year, week := s.SoldAt.UTC().ISOWeek()
		fitted := coef[0] + coef[1]*float64(week) + coef[2]*float64(year)
		d := y[i] - fitted
		rss += d * d
	}
	se := math.Sqrt(rss / float64(len(sales)))
	meanY := stat.Mean(y, nil)
	var tss float64
	for _, v := range y {
		d := v - meanY
		tss += d * d
	}
	r2 := 0.0
	if tss > 0 {
		r2 = math.Max(0, 1-rss/tss)
	}

	out := make([]prediction, len(periods))
	for i, fp := range periods {
		pred := coef[0] + coef[1]*float64(fp.week) + coef[2]*float64(fp.year)
		out[i] = prediction{
			mean:  math.Max(0, pred),
			lower: math.Max(0, pred-confidenceZ*se),
			upper: math.Max(0, pred+confidenceZ*se),
		}
	}
	return out, r2
}

func olsSolve(X *mat.Dense, y []float64) ([]float64, error) {
	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(len(y), y)); err != nil {
		return nil, err
	}
	out := make([]float64, beta.Len())
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

func finiteAll(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
