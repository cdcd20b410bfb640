package migrations

import (
	"gorm.io/gorm"
)

// AddTradeIndexes adds the lookup indexes used by trade listing and link resolution
func AddTradeIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Ticker filter and distinct ticker list
		`CREATE INDEX IF NOT EXISTS idx_trades_ticker
		 ON trades(ticker)`,

		// Newest-first listing and period bucketing
		`CREATE INDEX IF NOT EXISTS idx_trades_trade_date
		 ON trades(trade_date)`,

		// Closing legs of an opening trade
		`CREATE INDEX IF NOT EXISTS idx_trades_linked_trade_id
		 ON trades(linked_trade_id)`,

		`CREATE INDEX IF NOT EXISTS idx_trades_asset_type
		 ON trades(asset_type)`,

		// Rows written by one CSV import
		`CREATE INDEX IF NOT EXISTS idx_trades_import_batch_id
		 ON trades(import_batch_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
