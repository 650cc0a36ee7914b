package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/config"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/dedup"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/forecast"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/obs"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/queue"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/router"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/sales"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/series"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/training"
)

func main() {
	_ = godotenv.Load()

	log := obs.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Sale{},
		&model.ProcessedEvent{},
		&model.Forecast{},
		&model.TrainingRun{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	locker := redislock.New(rdb)

	producer := queue.NewProducer(cfg)
	defer producer.Close()

	agg := series.New()
	ledger := dedup.NewLedger(db)

	// Replay persisted sales so the in-memory series survives restarts.
	// Dedup markers are backfilled so broker redeliveries stay no-ops.
	n, err := queue.Rebuild(context.Background(), db, ledger, agg)
	if err != nil {
		log.Fatalf("series rebuild: %v", err)
	}
	log.WithField("sales", n).Info("series rebuilt from sales table")

	recorder := sales.NewRecorder(db, producer, log)
	engine := forecast.NewEngine(agg, log)
	runLock := training.NewRedisRunLock(locker, cfg.TrainLockTTL)
	trainer := training.NewTrainer(db, runLock, log, cfg.MinTrainSales, cfg.TrainAheadWeeks, cfg.TrainBudget)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg, queue.NewHandler(ledger, agg, log), log)
	defer consumer.Close()
	go consumer.Run(ctx)

	outbox := queue.NewOutbox(db, producer, log, cfg.OutboxInterval)
	go outbox.Run(ctx)

	scheduler := training.NewScheduler(trainer, log)
	go scheduler.Run(ctx)

	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:       db,
		RDB:      rdb,
		Producer: producer,
		Recorder: recorder,
		Engine:   engine,
		Trainer:  trainer,
		Agg:      agg,
		Log:      log,
		Cfg:      cfg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
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
