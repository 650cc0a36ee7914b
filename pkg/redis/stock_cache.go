// Package redis holds key conventions and small cache helpers shared by the
// HTTP handlers.
package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// SetStock writes the current stock for a product with a TTL; called on
// product writes and after each recorded sale (write-through).
func SetStock(ctx context.Context, rdb *rd.Client, productID uint, stock int, ttl time.Duration) error {
	return rdb.Set(ctx, StockKey(productID), stock, ttl).Err()
}

// GetStock reads the cached stock. The second return is false on a miss so
// callers can fall back to the database.
func GetStock(ctx context.Context, rdb *rd.Client, productID uint) (int, bool, error) {
	v, err := rdb.Get(ctx, StockKey(productID)).Int()
	if err != nil {
		if err == rd.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return v, true, nil
}

// DeleteStock drops the cache entry for a deleted product.
func DeleteStock(ctx context.Context, rdb *rd.Client, productID uint) error {
	return rdb.Del(ctx, StockKey(productID)).Err()
}
