// Command seed populates a development database with sample products and a
// few weeks of historical sales, enough for the weekly trainer and the live
// forecast endpoint to produce non-trivial output.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/config"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
)

var sampleProducts = []model.Product{
	{SKU: "WIDGET-001", Name: "Widget", Price: decimal.NewFromFloat(19.99), Stock: 500},
	{SKU: "GADGET-001", Name: "Gadget", Price: decimal.NewFromFloat(49.50), Stock: 300},
	{SKU: "GIZMO-001", Name: "Gizmo", Price: decimal.NewFromFloat(7.25), Stock: 1000},
}

func main() {
	weeks := flag.Int("weeks", 8, "weeks of sales history to generate")
	perDay := flag.Int("per-day", 3, "max sales per product per day")
	seed := flag.Int64("seed", 1, "rng seed")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(&model.Product{}, &model.Sale{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	for i := range sampleProducts {
		p := &sampleProducts[i]
		// Idempotent on SKU so reruns do not duplicate the catalog.
		var existing model.Product
		err := db.Where("sku = ?", p.SKU).First(&existing).Error
		switch {
		case err == nil:
			*p = existing
			continue
		case err != gorm.ErrRecordNotFound:
			log.Fatalf("lookup product %s: %v", p.SKU, err)
		}
		if err := db.Create(p).Error; err != nil {
			log.Fatalf("create product %s: %v", p.SKU, err)
		}
	}

	start := time.Now().UTC().AddDate(0, 0, -7*(*weeks)).Truncate(24 * time.Hour)
	total := 0
	for day := start; day.Before(time.Now().UTC()); day = day.AddDate(0, 0, 1) {
		for _, p := range sampleProducts {
			for i := 0; i < rng.Intn(*perDay+1); i++ {
				soldAt := day.Add(time.Duration(rng.Intn(24*3600)) * time.Second)
				sale := model.Sale{
					SaleUID:   uuid.NewString(),
					ProductID: p.ID,
					Quantity:  1 + rng.Intn(5),
					Price:     p.Price,
					SoldAt:    soldAt,
					// Historical rows are marked published so the outbox
					// sweeper does not replay them onto the event log.
					EventStatus: model.SaleEventPublished,
				}
				if err := db.Create(&sale).Error; err != nil {
					log.Fatalf("create sale: %v", err)
				}
				total++
			}
		}
	}

	fmt.Printf("seeded %d products and %d sales over %d weeks\n", len(sampleProducts), total, *weeks)
}

func openDB(cfg config.AppConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{TranslateError: true}
	switch cfg.DBDriver {
	case "mysql":
		return gorm.Open(mysql.Open(cfg.DBDSN), gormCfg)
	case "sqlite":
		return gorm.Open(sqlite.Open(config.SQLiteDSN(cfg.DBDSN)), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}
