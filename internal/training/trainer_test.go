package training

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

// fakeLock is an in-process RunLock so trainer tests need no Redis.
type fakeLock struct {
	held     bool
	acquired int
}

func (f *fakeLock) Acquire(context.Context) (func(), error) {
	if f.held {
		return nil, ErrRunInProgress
	}
	f.held = true
	f.acquired++
	return func() { f.held = false }, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s/test.db?_busy_timeout=5000", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.Product{}, &model.Sale{}, &model.Forecast{}, &model.TrainingRun{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProductWithSales(t *testing.T, db *gorm.DB, sku string, weeks []int, qty []int, base time.Time) model.Product {
	t.Helper()
	p := model.Product{SKU: sku, Name: sku, Price: decimal.NewFromInt(10), Stock: 100}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	for i := range weeks {
		s := model.Sale{
			SaleUID:   fmt.Sprintf("%s-%d", sku, i),
			ProductID: p.ID,
			Quantity:  qty[i],
			Price:     p.Price,
			SoldAt:    base.AddDate(0, 0, 7*weeks[i]),
		}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("seed sale: %v", err)
		}
	}
	return p
}

var trainBase = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC) // a Monday

func TestRunOncePersistsForecasts(t *testing.T) {
	db := testDB(t)
	tr := NewTrainer(db, &fakeLock{}, testLogger(), 4, 4, time.Minute)
	p := seedProductWithSales(t, db, "P1",
		[]int{0, 1, 2, 3, 4, 5}, []int{10, 12, 14, 16, 18, 20}, trainBase)

	now := trainBase.AddDate(0, 0, 7*6)
	res, err := tr.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Ran || res.Trained != 1 {
		t.Fatalf("expected one trained product, got %+v", res)
	}

	var forecasts []model.Forecast
	if err := db.Where("product_id = ?", p.ID).Find(&forecasts).Error; err != nil {
		t.Fatalf("load forecasts: %v", err)
	}
	if len(forecasts) != 4 {
		t.Fatalf("expected 4 forecast records, got %d", len(forecasts))
	}
	for _, f := range forecasts {
		if f.Predicted < 0 || f.Lower < 0 || f.Upper < 0 {
			t.Fatalf("negative forecast values: %+v", f)
		}
		if f.Lower > f.Predicted || f.Predicted > f.Upper {
			t.Fatalf("band not ordered: %+v", f)
		}
	}

	var runs []model.TrainingRun
	if err := db.Find(&runs).Error; err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 1 || runs[0].PeriodKey != PeriodKey(now) {
		t.Fatalf("expected one marker for %s, got %+v", PeriodKey(now), runs)
	}
}

func TestRunOnceSamePeriodIsNoOp(t *testing.T) {
	db := testDB(t)
	lock := &fakeLock{}
	tr := NewTrainer(db, lock, testLogger(), 4, 4, time.Minute)
	seedProductWithSales(t, db, "P1",
		[]int{0, 1, 2, 3}, []int{5, 6, 7, 8}, trainBase)

	now := trainBase.AddDate(0, 0, 7*4)
	first, err := tr.RunOnce(context.Background(), now)
	if err != nil || !first.Ran {
		t.Fatalf("first run: res=%+v err=%v", first, err)
	}

	var before []model.Forecast
	db.Order("id").Find(&before)

	second, err := tr.RunOnce(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Ran {
		t.Fatalf("second run in same period must be a no-op")
	}

	var after []model.Forecast
	db.Order("id").Find(&after)
	if len(after) != len(before) {
		t.Fatalf("forecast records changed on no-op run")
	}
	for i := range before {
		if before[i].Predicted != after[i].Predicted || before[i].UpdatedAt != after[i].UpdatedAt {
			t.Fatalf("record %d mutated on no-op run", i)
		}
	}

	var runCount int64
	db.Model(&model.TrainingRun{}).Count(&runCount)
	if runCount != 1 {
		t.Fatalf("expected one marker, got %d", runCount)
	}
}

func TestRunOnceNextPeriodRetrains(t *testing.T) {
	db := testDB(t)
	tr := NewTrainer(db, &fakeLock{}, testLogger(), 4, 2, time.Minute)
	seedProductWithSales(t, db, "P1",
		[]int{0, 1, 2, 3}, []int{5, 6, 7, 8}, trainBase)

	now := trainBase.AddDate(0, 0, 7*4)
	if _, err := tr.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := tr.RunOnce(context.Background(), now.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("next period run: %v", err)
	}
	if !res.Ran {
		t.Fatalf("next period must retrain")
	}
	var runCount int64
	db.Model(&model.TrainingRun{}).Count(&runCount)
	if runCount != 2 {
		t.Fatalf("expected two markers, got %d", runCount)
	}
}

func TestRunOnceSkipsThinHistory(t *testing.T) {
	db := testDB(t)
	tr := NewTrainer(db, &fakeLock{}, testLogger(), 4, 4, time.Minute)
	seedProductWithSales(t, db, "THIN", []int{0, 1, 2}, []int{1, 2, 3}, trainBase)

	res, err := tr.RunOnce(context.Background(), trainBase.AddDate(0, 0, 28))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Trained != 0 || res.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", res)
	}
	var n int64
	db.Model(&model.Forecast{}).Count(&n)
	if n != 0 {
		t.Fatalf("no forecasts expected for thin history")
	}
	// The marker is still written: the period ran, there was nothing to fit.
	db.Model(&model.TrainingRun{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected marker even with no trainable products")
	}
}

func TestRunOnceLockContention(t *testing.T) {
	db := testDB(t)
	lock := &fakeLock{held: true}
	tr := NewTrainer(db, lock, testLogger(), 4, 4, time.Minute)

	_, err := tr.RunOnce(context.Background(), trainBase)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunOnceBudgetExpiryWritesNoMarker(t *testing.T) {
	db := testDB(t)
	// Zero budget: the run context expires before the first product.
	tr := NewTrainer(db, &fakeLock{}, testLogger(), 4, 4, 0)
	seedProductWithSales(t, db, "P1",
		[]int{0, 1, 2, 3}, []int{5, 6, 7, 8}, trainBase)

	_, err := tr.RunOnce(context.Background(), trainBase.AddDate(0, 0, 28))
	if err == nil {
		t.Fatalf("expected budget expiry error")
	}
	var n int64
	db.Model(&model.TrainingRun{}).Count(&n)
	if n != 0 {
		t.Fatalf("timed-out run must not write a marker")
	}
	db.Model(&model.Forecast{}).Count(&n)
	if n != 0 {
		t.Fatalf("timed-out run must roll back forecasts")
	}
}

func TestRunOnceUpsertsExistingRecords(t *testing.T) {
	db := testDB(t)
	tr := NewTrainer(db, &fakeLock{}, testLogger(), 4, 2, time.Minute)
	p := seedProductWithSales(t, db, "P1",
		[]int{0, 1, 2, 3, 4}, []int{5, 6, 7, 8, 9}, trainBase)

	now := trainBase.AddDate(0, 0, 7*5)
	// Pre-existing record for a period the run will predict again.
	future := now.AddDate(0, 0, 7)
	pre := model.Forecast{ProductID: p.ID, PeriodKey: PeriodKey(future), Predicted: 999, Lower: 0, Upper: 9999}
	if err := db.Create(&pre).Error; err != nil {
		t.Fatalf("seed forecast: %v", err)
	}

	if _, err := tr.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("run: %v", err)
	}

	var got model.Forecast
	if err := db.Where("product_id = ? AND period_key = ?", p.ID, PeriodKey(future)).
		First(&got).Error; err != nil {
		t.Fatalf("load upserted record: %v", err)
	}
	if got.Predicted == 999 {
		t.Fatalf("existing record was not updated")
	}
	var n int64
	db.Model(&model.Forecast{}).
		Where("product_id = ? AND period_key = ?", p.ID, PeriodKey(future)).
		Count(&n)
	if n != 1 {
		t.Fatalf("upsert must keep one row per (product, period), got %d", n)
	}
}

func TestPeriodKeyFormat(t *testing.T) {
	// 2026-01-01 is a Thursday in ISO week 1 of 2026.
	k := PeriodKey(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if k != "2026-W01" {
		t.Fatalf("unexpected period key %q", k)
	}
	// 2024-12-30 belongs to ISO week 1 of 2025.
	k = PeriodKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	if k != "2025-W01" {
		t.Fatalf("unexpected period key %q", k)
	}
}

func TestSleepUntilNextRun(t *testing.T) {
	// Wednesday noon: next Monday 00:05 is 4.5 days later.
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	d := sleepUntilNextRun(now)
	want := time.Date(2026, 8, 31, 0, 5, 0, 0, time.UTC).Sub(now)
	if d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}
	// On a Monday the next run is a full week out: the tick for this week
	// already fired at the top of the loop.
	now = time.Date(2026, 8, 31, 0, 4, 30, 0, time.UTC)
	d = sleepUntilNextRun(now)
	want = time.Date(2026, 9, 7, 0, 5, 0, 0, time.UTC).Sub(now)
	if d != want {
		t.Fatalf("expected %v, got %v", want, d)
	}
}
