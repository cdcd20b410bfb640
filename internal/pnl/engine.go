package pnl

import (
	"context"
	"fmt"

	"github.com/ksred/options-tracker/internal/positions"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/shopspring/decimal"
)

// PriceFeed supplies current marks for open positions. A false second
// return means no mark is available for that position.
type PriceFeed interface {
	StockPrice(ctx context.Context, ticker string) (decimal.Decimal, bool)
	OptionPrice(ctx context.Context, position types.OpenPosition) (decimal.Decimal, bool)
}

// Summarize computes realized, unrealized and fee totals over the whole
// ledger at full precision. Without a feed unrealized P&L is zero and the
// summary says so through UnrealizedStatus and one issue per open position.
func Summarize(ctx context.Context, trades []types.Trade, feed PriceFeed) types.PnLSummary {
	summary := types.PnLSummary{
		RealizedPnL:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		TotalFees:     decimal.Zero,
	}

	for _, t := range trades {
		summary.TotalFees = summary.TotalFees.Add(t.Fees)
	}

	optionRealized := RealizedOptions(trades)
	stockRealized, book, stockIssues := realizedStocks(trades)
	summary.RealizedPnL = optionRealized.Add(stockRealized)

	open, optionIssues := positions.OpenOptionPositions(trades)
	summary.Issues = append(summary.Issues, optionIssues...)
	summary.Issues = append(summary.Issues, stockIssues...)

	unrealized, status, unpriced := unrealizedPnL(ctx, open, book.Positions(), feed)
	summary.UnrealizedPnL = unrealized
	summary.UnrealizedStatus = status
	summary.Issues = append(summary.Issues, unpriced...)

	summary.TotalPnL = summary.RealizedPnL.Add(summary.UnrealizedPnL)
	return summary
}

// RealizedOptions sums the realized P&L of every closing option or spread
// trade linked to an opening trade in the ledger. Opening fees are charged
// to closing trades in proportion to the quantity each one closes, so a
// position closed in pieces carries its opening fee exactly once. Closing
// trades without a resolvable opening trade realize nothing.
func RealizedOptions(trades []types.Trade) decimal.Decimal {
	byID := make(map[uint]types.Trade, len(trades))
	for _, t := range trades {
		byID[t.ID] = t
	}

	feeQtyUsed := map[uint]int64{}
	total := decimal.Zero
	for _, t := range trades {
		if !t.AssetType.HasContracts() || !t.Action.IsClosing() || t.LinkedTradeID == nil {
			continue
		}
		open, ok := byID[*t.LinkedTradeID]
		if !ok || !open.AssetType.HasContracts() || !open.Action.IsOpening() {
			continue
		}

		feeQty := t.Quantity
		if left := open.Quantity - feeQtyUsed[open.ID]; feeQty > left {
			feeQty = left
		}
		if feeQty < 0 {
			feeQty = 0
		}
		feeQtyUsed[open.ID] += feeQty

		total = total.Add(closeRealized(open, t, feeQty))
	}
	return total
}

// closeRealized is the P&L of one closing leg:
// STO: (open - close) × qty × multiplier - fees
// BTO: (close - open) × qty × multiplier - fees
func closeRealized(open, closing types.Trade, feeQty int64) decimal.Decimal {
	closePrice := closing.PricePerUnit
	if closing.Action == types.ActionExpired || closing.Action == types.ActionAssigned {
		closePrice = decimal.Zero
	}

	diff := open.PricePerUnit.Sub(closePrice)
	if open.Action == types.ActionBTO {
		diff = diff.Neg()
	}
	gross := diff.Mul(decimal.NewFromInt(closing.Quantity)).Mul(open.AssetType.Multiplier())

	openFees := decimal.Zero
	if open.Quantity > 0 && feeQty > 0 {
		openFees = open.Fees.Mul(decimal.NewFromInt(feeQty)).Div(decimal.NewFromInt(open.Quantity))
	}

	return gross.Sub(closing.Fees).Sub(openFees)
}

// realizedStocks replays stock trades chronologically and returns the
// realized total together with the resulting book.
func realizedStocks(trades []types.Trade) (decimal.Decimal, *positions.StockBook, []types.Issue) {
	book := positions.NewStockBook()
	total := decimal.Zero
	var issues []types.Issue
	for _, t := range positions.SortedStockTrades(trades) {
		sale, ok := book.Apply(t)
		if !ok {
			continue
		}
		total = total.Add(sale.Realized)
		if sale.Oversold > 0 {
			issues = append(issues, sale.Issue())
		}
	}
	return total, book, issues
}

func unrealizedPnL(ctx context.Context, options []types.OpenPosition, stocks []types.StockPosition, feed PriceFeed) (decimal.Decimal, string, []types.Issue) {
	var issues []types.Issue
	if feed == nil {
		for _, p := range options {
			issues = append(issues, unpricedIssue(p.TradeID, p.Ticker, "no price feed configured"))
		}
		for _, p := range stocks {
			issues = append(issues, unpricedIssue(0, p.Ticker, "no price feed configured"))
		}
		return decimal.Zero, types.UnrealizedUnavailable, issues
	}

	total := decimal.Zero
	for _, p := range options {
		mark, ok := feed.OptionPrice(ctx, p)
		if !ok {
			issues = append(issues, unpricedIssue(p.TradeID, p.Ticker, "no option mark available"))
			continue
		}
		diff := mark.Sub(p.PricePerUnit)
		if p.Action == types.ActionSTO {
			diff = diff.Neg()
		}
		total = total.Add(diff.Mul(decimal.NewFromInt(p.Quantity)).Mul(p.AssetType.Multiplier()))
	}
	for _, p := range stocks {
		price, ok := feed.StockPrice(ctx, p.Ticker)
		if !ok {
			issues = append(issues, unpricedIssue(0, p.Ticker, "no stock price available"))
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(p.Shares)).Sub(p.CostBasis))
	}

	status := types.UnrealizedPriced
	if len(issues) > 0 {
		status = types.UnrealizedPartial
	}
	return total, status, issues
}

func unpricedIssue(tradeID uint, ticker, reason string) types.Issue {
	return types.Issue{
		Kind:    types.IssueUnpriced,
		TradeID: tradeID,
		Ticker:  ticker,
		Message: fmt.Sprintf("unrealized P&L for %s reported as 0: %s", ticker, reason),
	}
}

// StaticPrices is a PriceFeed over fixed marks. Option marks are keyed by
// the entry trade id of the position.
type StaticPrices struct {
	Stocks  map[string]decimal.Decimal
	Options map[uint]decimal.Decimal
}

func (p StaticPrices) StockPrice(_ context.Context, ticker string) (decimal.Decimal, bool) {
	v, ok := p.Stocks[ticker]
	return v, ok
}

func (p StaticPrices) OptionPrice(_ context.Context, position types.OpenPosition) (decimal.Decimal, bool) {
	v, ok := p.Options[position.TradeID]
	return v, ok
}
