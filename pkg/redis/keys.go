package redis

import "fmt"

// StockKey names the cached stock counter for a product.
func StockKey(productID uint) string {
	return fmt.Sprintf("forecasting:stock:%d", productID)
}
