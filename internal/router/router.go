// Package router wires the HTTP API: product CRUD, sale creation and the
// forecast/admin endpoints.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/config"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/forecast"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/middleware"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/queue"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/sales"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/series"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/training"
)

// Deps carries everything the handlers close over.
type Deps struct {
	DB       *gorm.DB
	RDB      *rd.Client
	Producer *queue.Producer
	Recorder *sales.Recorder
	Engine   *forecast.Engine
	Trainer  *training.Trainer
	Agg      *series.Aggregator
	Log      *logrus.Logger
	Cfg      config.AppConfig
}

// Setup registers all HTTP routes.
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api", middleware.Auth(d.Cfg.JWTSecret))

	api.GET("/products", listProducts(d))
	api.POST("/products", createProduct(d))
	api.GET("/products/:id", getProduct(d))
	api.PUT("/products/:id", updateProduct(d))
	api.DELETE("/products/:id", deleteProduct(d))
	api.GET("/products/:id/stock", getStock(d))

	api.POST("/sales",
		middleware.RedisRateLimit(d.RDB, d.Cfg.SaleRateLimit, d.Cfg.SaleRateWindow),
		createSale(d))
	api.GET("/sales", listSales(d))

	api.GET("/forecast", getForecast(d))
	api.GET("/forecast/records", listForecastRecords(d))

	admin := api.Group("/admin", middleware.RequireRole("admin"))
	admin.POST("/train", triggerTraining(d))
	admin.GET("/trainings", listTrainingRuns(d))
}
