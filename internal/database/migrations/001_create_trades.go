package migrations

import (
	"github.com/ksred/options-tracker/internal/types"
	"gorm.io/gorm"
)

// CreateTrades creates the trades ledger table
func CreateTrades(db *gorm.DB) error {
	return db.AutoMigrate(&types.Trade{})
}
