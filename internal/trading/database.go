package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ksred/options-tracker/internal/types"
	"gorm.io/gorm"
)

var closingActions = []types.Action{
	types.ActionBTC, types.ActionSTC, types.ActionExpired, types.ActionAssigned,
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) InsertTrade(ctx context.Context, trade *types.Trade) error {
	return d.db.WithContext(ctx).Create(trade).Error
}

func (d *Database) GetTrade(ctx context.Context, id uint) (*types.Trade, error) {
	var trade types.Trade
	if err := d.db.WithContext(ctx).First(&trade, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}

// ListTrades returns trades matching every non-empty filter field, newest first.
func (d *Database) ListTrades(ctx context.Context, filter TradeFilter) ([]types.Trade, error) {
	query := d.db.WithContext(ctx).Model(&types.Trade{})
	if v := filterValue(filter.Ticker); v != "" {
		query = query.Where("ticker = ?", strings.ToUpper(v))
	}
	if v := filterValue(filter.AssetType); v != "" {
		query = query.Where("asset_type = ?", v)
	}
	if v := filterValue(filter.Action); v != "" {
		query = query.Where("action = ?", v)
	}

	var trades []types.Trade
	if err := query.Order("trade_date DESC").Order("id DESC").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func filterValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

// ListLinkedTrades returns the trades whose linked_trade_id is id.
func (d *Database) ListLinkedTrades(ctx context.Context, id uint) ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.WithContext(ctx).
		Where("linked_trade_id = ?", id).
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}

// UpdateTrade applies column updates to one trade.
func (d *Database) UpdateTrade(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := d.db.WithContext(ctx).Model(&types.Trade{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrTradeNotFound
	}
	return nil
}

// DeleteTrade removes a trade and clears linked_trade_id on every trade that pointed at it
func (d *Database) DeleteTrade(ctx context.Context, id uint) error {
	return d.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&types.Trade{}).
			Where("linked_trade_id = ?", id).
			Update("linked_trade_id", nil).Error; err != nil {
			return fmt.Errorf("failed to unlink dependent trades: %w", err)
		}

		result := tx.Delete(&types.Trade{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.ErrTradeNotFound
		}
		return nil
	})
}

// errOverClose is returned by InsertClosingTrade when the closing quantity
// exceeds what is still open on the opening trade.
var errOverClose = errors.New("closing quantity exceeds open quantity")

// InsertClosingTrade records a closing leg against an opening trade of
// openQty contracts. The quantity still open is recomputed inside the
// transaction; the opening trade is marked Closed when nothing is left.
// It returns the quantity left open after the close.
func (d *Database) InsertClosingTrade(ctx context.Context, closing *types.Trade, openQty int64) (int64, error) {
	if closing.LinkedTradeID == nil {
		return 0, errors.New("closing trade has no linked trade")
	}
	var left int64
	err := d.transaction(ctx, func(tx *gorm.DB) error {
		var closedQty int64
		err := tx.Model(&types.Trade{}).
			Where("linked_trade_id = ? AND action IN ?", *closing.LinkedTradeID, closingActions).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&closedQty).Error
		if err != nil {
			return err
		}
		remaining := openQty - closedQty
		if closing.Quantity > remaining {
			left = max(remaining, 0)
			return errOverClose
		}
		if err := tx.Create(closing).Error; err != nil {
			return err
		}
		left = remaining - closing.Quantity
		if left > 0 {
			return nil
		}
		return tx.Model(&types.Trade{}).
			Where("id = ?", *closing.LinkedTradeID).
			Update("status", types.StatusClosed).Error
	})
	return left, err
}

// InsertTradeChain inserts trades in order inside one transaction. Every
// trade after the first is linked to the first one.
func (d *Database) InsertTradeChain(ctx context.Context, chain []*types.Trade) error {
	if len(chain) == 0 {
		return nil
	}
	return d.transaction(ctx, func(tx *gorm.DB) error {
		opener := chain[0]
		if err := tx.Create(opener).Error; err != nil {
			return err
		}
		for _, t := range chain[1:] {
			id := opener.ID
			t.LinkedTradeID = &id
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Tickers returns the distinct tickers in the ledger, sorted.
func (d *Database) Tickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := d.db.WithContext(ctx).
		Model(&types.Trade{}).
		Distinct().
		Order("ticker ASC").
		Pluck("ticker", &tickers).Error
	return tickers, err
}

func (d *Database) CountTrades(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&types.Trade{}).Count(&count).Error
	return count, err
}

// Ping checks that the underlying database connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := d.db.WithContext(ctx).Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
