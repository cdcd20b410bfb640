package positions

import (
	"fmt"
	"sort"

	"github.com/ksred/options-tracker/internal/types"
	"github.com/shopspring/decimal"
)

type holding struct {
	shares int64
	cost   decimal.Decimal
}

// StockBook keeps a weighted-average cost basis per ticker. Buy fees are
// part of the cost basis; sell fees reduce realized proceeds.
type StockBook struct {
	holdings map[string]*holding
}

func NewStockBook() *StockBook {
	return &StockBook{holdings: map[string]*holding{}}
}

// Sale is the outcome of one Sell trade against the book.
type Sale struct {
	TradeID     uint
	Ticker      string
	Shares      int64
	Oversold    int64
	Proceeds    decimal.Decimal
	CostRemoved decimal.Decimal
	Realized    decimal.Decimal
}

// Issue describes a sale of more shares than were held.
func (s Sale) Issue() types.Issue {
	return types.Issue{
		Kind:    types.IssueOversold,
		TradeID: s.TradeID,
		Ticker:  s.Ticker,
		Message: fmt.Sprintf("sold %d shares with only %d held; the excess has no cost basis", s.Shares, s.Shares-s.Oversold),
	}
}

// Apply books a stock trade. It reports the sale when t is a Sell.
func (b *StockBook) Apply(t types.Trade) (Sale, bool) {
	if t.AssetType != types.AssetStock {
		return Sale{}, false
	}
	switch t.Action {
	case types.ActionBuy:
		b.buy(t)
	case types.ActionSell:
		return b.sell(t), true
	}
	return Sale{}, false
}

func (b *StockBook) get(ticker string) *holding {
	h, ok := b.holdings[ticker]
	if !ok {
		h = &holding{}
		b.holdings[ticker] = h
	}
	return h
}

func (b *StockBook) buy(t types.Trade) {
	h := b.get(t.Ticker)
	h.shares += t.Quantity
	h.cost = h.cost.Add(t.Notional()).Add(t.Fees)
}

// sell removes cost in proportion to the fraction of held shares sold.
func (b *StockBook) sell(t types.Trade) Sale {
	h := b.get(t.Ticker)
	matched := t.Quantity
	if matched > h.shares {
		matched = h.shares
	}

	removed := decimal.Zero
	if matched > 0 {
		removed = h.cost.Mul(decimal.NewFromInt(matched)).Div(decimal.NewFromInt(h.shares))
	}
	h.shares -= matched
	h.cost = h.cost.Sub(removed)
	if h.shares == 0 {
		h.cost = decimal.Zero
	}

	proceeds := t.Notional()
	return Sale{
		TradeID:     t.ID,
		Ticker:      t.Ticker,
		Shares:      t.Quantity,
		Oversold:    t.Quantity - matched,
		Proceeds:    proceeds,
		CostRemoved: removed,
		Realized:    proceeds.Sub(removed).Sub(t.Fees),
	}
}

// Shares returns the shares currently held for ticker.
func (b *StockBook) Shares(ticker string) int64 {
	if h, ok := b.holdings[ticker]; ok {
		return h.shares
	}
	return 0
}

// Positions lists every ticker with shares held, sorted by ticker.
func (b *StockBook) Positions() []types.StockPosition {
	positions := make([]types.StockPosition, 0, len(b.holdings))
	for ticker, h := range b.holdings {
		if h.shares <= 0 {
			continue
		}
		positions = append(positions, types.StockPosition{
			Ticker:    ticker,
			Shares:    h.shares,
			CostBasis: h.cost,
			AvgCost:   h.cost.Div(decimal.NewFromInt(h.shares)),
		})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })
	return positions
}

// SortedStockTrades returns the stock trades of the ledger in trade-date
// order, ties broken by id.
func SortedStockTrades(trades []types.Trade) []types.Trade {
	var stock []types.Trade
	for _, t := range trades {
		if t.AssetType == types.AssetStock {
			stock = append(stock, t)
		}
	}
	sort.SliceStable(stock, func(i, j int) bool { return chronological(stock[i], stock[j]) })
	return stock
}
