package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/middleware"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/sales"
)

func createSale(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductID uint     `json:"product_id" binding:"required,min=1"`
			Quantity  int      `json:"quantity" binding:"required,min=1"`
			Price     *float64 `json:"price" binding:"omitempty,gt=0"`
			SoldAt    string   `json:"sold_at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		soldAt := time.Now().UTC()
		if req.SoldAt != "" {
			t, err := time.Parse(time.RFC3339, req.SoldAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "sold_at must be RFC3339"})
				return
			}
			soldAt = t
		}

		in := sales.Input{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			SoldAt:    soldAt,
			UserID:    middleware.UserID(c),
		}
		if req.Price != nil {
			p := decimal.NewFromFloat(*req.Price)
			in.UnitPrice = &p
		}

		sale, err := d.Recorder.Record(c.Request.Context(), in)
		if err != nil {
			switch {
			case errors.Is(err, sales.ErrProductNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			case errors.Is(err, sales.ErrInsufficientStock):
				c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient stock"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		// Write-through: refresh the cached stock after the decrement.
		var p model.Product
		if err := d.DB.First(&p, sale.ProductID).Error; err == nil {
			cacheStock(c, d, p.ID, p.Stock)
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":         sale.ID,
			"product_id": sale.ProductID,
			"quantity":   sale.Quantity,
			"price":      sale.Price,
			"sold_at":    sale.SoldAt,
			"user_id":    sale.UserID,
		})
	}
}

func listSales(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := d.DB.Model(&model.Sale{})
		if v := c.Query("product_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product_id"})
				return
			}
			q = q.Where("product_id = ?", id)
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			q = q.Where("sold_at >= ?", t)
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			q = q.Where("sold_at <= ?", t)
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit < 1 || limit > 500 {
			limit = 50
		}

		var list []model.Sale
		if err := q.Order("id DESC").
			Offset((page - 1) * limit).
			Limit(limit).
			Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": list, "page": page, "limit": limit})
	}
}
