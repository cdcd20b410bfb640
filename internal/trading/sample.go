package trading

import (
	"context"
	"fmt"

	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// LoadSampleData seeds a handful of demo trades, dated relative to today.
// It does nothing and returns false when the ledger already has trades.
func (s *Service) LoadSampleData(ctx context.Context) (bool, error) {
	count, err := s.db.CountTrades(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count trades: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	today := date.Today()
	call := types.OptionCall
	open := types.StatusOpen
	closed := types.StatusClosed
	strike := func(v int64) decimal.NullDecimal {
		return decimal.NewNullDecimal(decimal.NewFromInt(v))
	}
	day := func(offset int) *date.Date {
		d := today.AddDays(offset)
		return &d
	}

	coveredCall := []*types.Trade{
		{
			Ticker: "AAPL", AssetType: types.AssetOption, OptionType: &call, Action: types.ActionSTO,
			StrikePrice: strike(180), ExpirationDate: day(-30), TradeDate: today.AddDays(-45),
			Quantity: 1, PricePerUnit: decimal.RequireFromString("3.25"), Fees: decimal.RequireFromString("0.65"),
			Notes: "Covered call", Status: &closed,
		},
		{
			Ticker: "AAPL", AssetType: types.AssetOption, OptionType: &call, Action: types.ActionBTC,
			StrikePrice: strike(180), ExpirationDate: day(-30), TradeDate: today.AddDays(-32),
			Quantity: 1, PricePerUnit: decimal.RequireFromString("0.50"), Fees: decimal.RequireFromString("0.65"),
			Notes: "Closed early", Status: &closed,
		},
	}
	if err := s.db.InsertTradeChain(ctx, coveredCall); err != nil {
		return false, fmt.Errorf("failed to insert sample trades: %w", err)
	}

	singles := []*types.Trade{
		{
			Ticker: "NVDA", AssetType: types.AssetStock, Action: types.ActionBuy,
			TradeDate: today.AddDays(-20), Quantity: 100, PricePerUnit: decimal.NewFromInt(180),
			Notes: "Long position",
		},
		{
			Ticker: "TSLA", AssetType: types.AssetSpread, OptionType: &call, Action: types.ActionBTO,
			StrikePrice: strike(440), StrikePrice2: strike(450), ExpirationDate: day(30),
			TradeDate: today.AddDays(-5), Quantity: 1, PricePerUnit: decimal.RequireFromString("4.55"),
			Fees: decimal.RequireFromString("1.30"), Notes: "Bull call spread", Status: &open,
		},
	}
	for _, t := range singles {
		if err := s.db.InsertTrade(ctx, t); err != nil {
			return false, fmt.Errorf("failed to insert sample trades: %w", err)
		}
	}

	log.Info().Int("trades", len(coveredCall)+len(singles)).Msg("sample data loaded")
	return true, nil
}
