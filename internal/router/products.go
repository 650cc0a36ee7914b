package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/queue"
	rediskey "github.com/Ahmedovo/Sales-forcasting-system/pkg/redis"
)

func listProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := d.DB.Order("id ASC").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func createProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SKU   string  `json:"sku" binding:"required"`
			Name  string  `json:"name" binding:"required"`
			Price float64 `json:"price" binding:"required,gt=0"`
			Stock int     `json:"stock" binding:"omitempty,min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := &model.Product{
			SKU:   req.SKU,
			Name:  req.Name,
			Price: decimal.NewFromFloat(req.Price),
			Stock: req.Stock,
		}
		if err := d.DB.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		publishProductEvent(c, d, queue.ProductCreated, *p)
		cacheStock(c, d, p.ID, p.Stock)
		c.JSON(http.StatusCreated, p)
	}
}

func getProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productIDParam(c)
		if !ok {
			return
		}
		var p model.Product
		if err := d.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// productPatch carries the optional fields of a product update; nil means
// "leave the column alone".
type productPatch struct {
	Name  *string  `json:"name"`
	Price *float64 `json:"price" binding:"omitempty,gt=0"`
	Stock *int     `json:"stock" binding:"omitempty,min=0"`
}

// applyProductPatch writes only the provided columns, under the same row
// lock the sales recorder takes. Writing the whole row back from an earlier
// read would overwrite a stock decrement that committed in between.
func applyProductPatch(db *gorm.DB, id uint, patch productPatch) (model.Product, error) {
	var p model.Product
	err := db.Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&p, id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Name != nil {
			p.Name = *patch.Name
			updates["name"] = p.Name
		}
		if patch.Price != nil {
			p.Price = decimal.NewFromFloat(*patch.Price)
			updates["price"] = p.Price
		}
		if patch.Stock != nil {
			p.Stock = *patch.Stock
			updates["stock"] = p.Stock
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&model.Product{}).Where("id = ?", p.ID).Updates(updates).Error
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func updateProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productIDParam(c)
		if !ok {
			return
		}
		var req productPatch
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p, err := applyProductPatch(d.DB, id, req)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		publishProductEvent(c, d, queue.ProductUpdated, p)
		cacheStock(c, d, p.ID, p.Stock)
		c.JSON(http.StatusOK, p)
	}
}

func deleteProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productIDParam(c)
		if !ok {
			return
		}
		var p model.Product
		if err := d.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := d.DB.Delete(&model.Product{}, id).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		publishProductEvent(c, d, queue.ProductDeleted, p)
		d.Agg.Drop(p.ID)
		if err := rediskey.DeleteStock(c.Request.Context(), d.RDB, p.ID); err != nil {
			d.Log.WithError(err).Warn("failed to drop stock cache entry")
		}
		c.Status(http.StatusNoContent)
	}
}

// getStock serves the cached counter, falling back to the database on a
// miss and repopulating the cache.
func getStock(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productIDParam(c)
		if !ok {
			return
		}
		stock, hit, err := rediskey.GetStock(c.Request.Context(), d.RDB, id)
		if err == nil && hit {
			c.JSON(http.StatusOK, gin.H{"product_id": id, "stock": stock})
			return
		}
		if err != nil {
			d.Log.WithError(err).Warn("stock cache read failed")
		}
		var p model.Product
		if err := d.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		cacheStock(c, d, p.ID, p.Stock)
		c.JSON(http.StatusOK, gin.H{"product_id": p.ID, "stock": p.Stock})
	}
}

func productIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, false
	}
	return uint(id), true
}

// Product events and the stock cache are best effort: the row is the source
// of truth and a miss only costs a database read.
func publishProductEvent(c *gin.Context, d Deps, action queue.ProductAction, p model.Product) {
	if err := d.Producer.PublishProductEvent(c.Request.Context(), action, queue.ProductEventFrom(p)); err != nil {
		d.Log.WithError(err).WithField("product_id", p.ID).Warn("product event publish failed")
	}
}

func cacheStock(c *gin.Context, d Deps, productID uint, stock int) {
	if err := rediskey.SetStock(c.Request.Context(), d.RDB, productID, stock, d.Cfg.StockCacheTTL); err != nil {
		d.Log.WithError(err).WithField("product_id", productID).Warn("stock cache write failed")
	}
}
