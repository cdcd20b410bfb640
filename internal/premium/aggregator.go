package premium

import (
	"fmt"
	"sort"

	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

// SignedPremium is the cash effect of a trade, credits positive:
// STO, STC, Sell, Expired and Assigned receive; BTO, BTC and Buy pay.
func SignedPremium(t types.Trade) decimal.Decimal {
	amount := t.Notional()
	if t.Action.IsCredit() {
		return amount
	}
	return amount.Neg()
}

// Aggregate buckets trades by the period key of their trade date and sums
// net premium, fees and trade count per bucket. An empty asset matches every
// asset type. Undated trades are left out and reported as issues. Buckets
// are returned newest first.
func Aggregate(trades []types.Trade, period date.Period, asset types.AssetType) types.PremiumReport {
	buckets := map[string]*types.PremiumPeriod{}
	var issues []types.Issue

	for _, t := range trades {
		if asset != "" && t.AssetType != asset {
			continue
		}
		if t.TradeDate.IsZero() {
			issues = append(issues, types.Issue{
				Kind:    types.IssueMissingDate,
				TradeID: t.ID,
				Ticker:  t.Ticker,
				Message: fmt.Sprintf("trade %d has no usable trade date and is excluded from premium", t.ID),
			})
			continue
		}

		key := period.Key(t.TradeDate)
		b, ok := buckets[key]
		if !ok {
			b = &types.PremiumPeriod{Period: key, NetPremium: decimal.Zero, TotalFees: decimal.Zero}
			buckets[key] = b
		}
		b.NetPremium = b.NetPremium.Add(SignedPremium(t))
		b.TotalFees = b.TotalFees.Add(t.Fees)
		b.NumTrades++
	}

	periods := make([]types.PremiumPeriod, 0, len(buckets))
	for _, b := range buckets {
		periods = append(periods, *b)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period > periods[j].Period })

	return types.PremiumReport{Periods: periods, Issues: issues}
}
