// Package testutil holds ledger fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/ksred/options-tracker/internal/database"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// NewDB returns a migrated in-memory ledger that is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewDatabase(":memory:", false)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TradeBuilder assembles a types.Trade with sensible defaults.
type TradeBuilder struct {
	t types.Trade
}

// Option starts a single-leg call option trade.
func Option(ticker string, action types.Action) *TradeBuilder {
	call := types.OptionCall
	exp := date.MustParse("2024-03-15")
	return &TradeBuilder{t: types.Trade{
		Ticker:         ticker,
		AssetType:      types.AssetOption,
		OptionType:     &call,
		Action:         action,
		StrikePrice:    decimal.NewNullDecimal(decimal.NewFromInt(100)),
		ExpirationDate: &exp,
		TradeDate:      date.MustParse("2024-01-01"),
		Quantity:       1,
		PricePerUnit:   decimal.NewFromInt(1),
	}}
}

// Spread starts a two-strike call spread trade.
func Spread(ticker string, action types.Action) *TradeBuilder {
	b := Option(ticker, action)
	b.t.AssetType = types.AssetSpread
	b.t.StrikePrice2 = decimal.NewNullDecimal(decimal.NewFromInt(110))
	return b
}

// Stock starts a share trade.
func Stock(ticker string, action types.Action) *TradeBuilder {
	return &TradeBuilder{t: types.Trade{
		Ticker:       ticker,
		AssetType:    types.AssetStock,
		Action:       action,
		TradeDate:    date.MustParse("2024-01-01"),
		Quantity:     1,
		PricePerUnit: decimal.NewFromInt(1),
	}}
}

func (b *TradeBuilder) ID(id uint) *TradeBuilder {
	b.t.ID = id
	return b
}

func (b *TradeBuilder) Put() *TradeBuilder {
	put := types.OptionPut
	b.t.OptionType = &put
	return b
}

func (b *TradeBuilder) Strike(s string) *TradeBuilder {
	b.t.StrikePrice = decimal.NewNullDecimal(Dec(s))
	return b
}

func (b *TradeBuilder) Strike2(s string) *TradeBuilder {
	b.t.StrikePrice2 = decimal.NewNullDecimal(Dec(s))
	return b
}

func (b *TradeBuilder) Expires(s string) *TradeBuilder {
	d := date.MustParse(s)
	b.t.ExpirationDate = &d
	return b
}

// On sets the trade date. An empty string leaves the trade undated.
func (b *TradeBuilder) On(s string) *TradeBuilder {
	if s == "" {
		b.t.TradeDate = date.Date{}
		return b
	}
	b.t.TradeDate = date.MustParse(s)
	return b
}

func (b *TradeBuilder) Qty(q int64) *TradeBuilder {
	b.t.Quantity = q
	return b
}

func (b *TradeBuilder) Price(s string) *TradeBuilder {
	b.t.PricePerUnit = Dec(s)
	return b
}

func (b *TradeBuilder) Fees(s string) *TradeBuilder {
	b.t.Fees = Dec(s)
	return b
}

func (b *TradeBuilder) LinkedTo(id uint) *TradeBuilder {
	b.t.LinkedTradeID = &id
	return b
}

func (b *TradeBuilder) Build() types.Trade { return b.t }
