package queue

import (
	"context"

	"gorm.io/gorm"

	"github.com/Ahmedovo/Sales-forcasting-system/internal/dedup"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/model"
	"github.com/Ahmedovo/Sales-forcasting-system/internal/series"
)

// Rebuild reloads the volatile aggregator from the sales table at startup.
// Every folded sale gets its dedup marker backfilled, so the "marker exists
// iff folded" invariant holds when the consumer resumes: deliveries for
// rebuilt sales are recognized as duplicates, deliveries for sales recorded
// after the snapshot fold normally.
func Rebuild(ctx context.Context, db *gorm.DB, ledger *dedup.Ledger, agg *series.Aggregator) (int, error) {
	const batch = 500
	total := 0
	var sales []model.Sale
	err := db.WithContext(ctx).
		Order("id ASC").
		FindInBatches(&sales, batch, func(tx *gorm.DB, _ int) error {
			for _, s := range sales {
				if err := ledger.MarkProcessedIgnoreExisting(ctx, s.SaleUID); err != nil {
					return err
				}
				agg.Apply(s.ProductID, s.SoldAt, s.Quantity)
				total++
			}
			return nil
		}).Error
	if err != nil {
		return total, err
	}
	return total, nil
}
