package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/training"
)

// getForecast answers the on-demand path from the live series. Insufficient
// data yields a flat zero forecast; only an unknown product is an error.
func getForecast(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		pidStr := c.Query("product_id")
		if pidStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_id required"})
			return
		}
		pid, err := strconv.ParseUint(pidStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
			return
		}
		horizon := d.Cfg.DefaultHorizonDays
		if v := c.Query("horizon_days"); v != "" {
			h, err := strconv.Atoi(v)
			if err != nil || h < 1 || h > 365 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid horizon_days"})
				return
			}
			horizon = h
		}

		var p model.Product
		if err := d.DB.First(&p, pid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		res := d.Engine.Predict(uint(pid), horizon)
		c.JSON(http.StatusOK, gin.H{
			"product_id":   uint(pid),
			"horizon_days": horizon,
			"forecast":     res.Forecast,
			"lower":        res.Lower,
			"upper":        res.Upper,
		})
	}
}

func listForecastRecords(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := d.DB.Model(&model.Forecast{})
		if v := c.Query("product_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
				return
			}
			q = q.Where("product_id = ?", id)
		}
		var list []model.Forecast
		if err := q.Order("product_id ASC, period_key ASC").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// triggerTraining runs a batch cycle on demand. The period marker makes a
// repeat trigger within the same week a reported no-op.
func triggerTraining(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := d.Trainer.RunOnce(c.Request.Context(), time.Now().UTC())
		if err != nil {
			if errors.Is(err, training.ErrRunInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": "training run already in progress"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func listTrainingRuns(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var runs []model.TrainingRun
		if err := d.DB.Order("id DESC").Limit(50).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, runs)
	}
}
