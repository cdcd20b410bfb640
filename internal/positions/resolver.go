package positions

import (
	"fmt"
	"sort"

	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

// groupKey identifies one option or spread position. Trades that share a
// key and opening side are the same position.
type groupKey struct {
	asset      types.AssetType
	ticker     string
	optionType types.OptionType
	strike     string
	strike2    string
	expiration date.Date
	side       types.Action
}

func keyOf(t types.Trade) groupKey {
	k := groupKey{
		asset:      t.AssetType,
		ticker:     t.Ticker,
		optionType: t.OptionKind(),
		expiration: t.Expiration(),
		side:       t.Action,
	}
	if t.StrikePrice.Valid {
		k.strike = t.StrikePrice.Decimal.String()
	}
	if t.StrikePrice2.Valid {
		k.strike2 = t.StrikePrice2.Decimal.String()
	}
	return k
}

type group struct {
	openers []types.Trade
	opened  int64
	closed  int64
}

// entry is the earliest opening trade of the group.
func (g *group) entry() types.Trade {
	first := g.openers[0]
	for _, t := range g.openers[1:] {
		if chronological(t, first) {
			first = t
		}
	}
	return first
}

// chronological orders trades by trade date, then id.
func chronological(a, b types.Trade) bool {
	if c := a.TradeDate.Compare(b.TradeDate); c != 0 {
		return c < 0
	}
	return a.ID < b.ID
}

// OpenOptionPositions derives the option and spread positions that still
// have quantity open. Closing trades reduce the group of the opening trade
// they link to; closing trades whose link is missing or dangling are left
// out and reported as issues.
func OpenOptionPositions(trades []types.Trade) ([]types.OpenPosition, []types.Issue) {
	var issues []types.Issue
	groups := map[groupKey]*group{}
	var order []groupKey
	groupOf := map[uint]groupKey{}

	for _, t := range trades {
		if !t.AssetType.HasContracts() || !t.Action.IsOpening() {
			continue
		}
		k := keyOf(t)
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			order = append(order, k)
		}
		g.openers = append(g.openers, t)
		g.opened += t.Quantity
		groupOf[t.ID] = k
	}

	for _, t := range trades {
		if !t.AssetType.HasContracts() || !t.Action.IsClosing() {
			continue
		}
		if t.LinkedTradeID == nil {
			issues = append(issues, types.Issue{
				Kind:    types.IssueUnlinkedClose,
				TradeID: t.ID,
				Ticker:  t.Ticker,
				Message: fmt.Sprintf("%s trade %d is not linked to an opening trade", t.Action, t.ID),
			})
			continue
		}
		k, ok := groupOf[*t.LinkedTradeID]
		if !ok {
			issues = append(issues, types.Issue{
				Kind:    types.IssueOrphanLink,
				TradeID: t.ID,
				Ticker:  t.Ticker,
				Message: fmt.Sprintf("%s trade %d links to trade %d which is not a known opening trade", t.Action, t.ID, *t.LinkedTradeID),
			})
			continue
		}
		groups[k].closed += t.Quantity
	}

	positions := make([]types.OpenPosition, 0, len(order))
	for _, k := range order {
		g := groups[k]
		remaining := g.opened - g.closed
		if remaining < 0 {
			entry := g.entry()
			issues = append(issues, types.Issue{
				Kind:    types.IssueOverClose,
				TradeID: entry.ID,
				Ticker:  entry.Ticker,
				Message: fmt.Sprintf("closed %d of a position opened with %d", g.closed, g.opened),
			})
			remaining = 0
		}
		if remaining == 0 {
			continue
		}

		entry := g.entry()
		fees := decimal.Zero
		for _, o := range g.openers {
			fees = fees.Add(o.Fees)
		}
		positions = append(positions, types.OpenPosition{
			TradeID:        entry.ID,
			Ticker:         entry.Ticker,
			AssetType:      entry.AssetType,
			OptionType:     entry.OptionKind(),
			Action:         entry.Action,
			StrikePrice:    entry.StrikePrice,
			StrikePrice2:   entry.StrikePrice2,
			ExpirationDate: entry.ExpirationDate,
			TradeDate:      entry.TradeDate,
			Quantity:       remaining,
			OpenedQuantity: g.opened,
			PricePerUnit:   entry.PricePerUnit,
			Fees:           fees,
			Notes:          entry.Notes,
		})
	}

	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		ea, eb := expirationOf(a), expirationOf(b)
		switch {
		case ea.IsZero() != eb.IsZero():
			return eb.IsZero()
		case ea != eb:
			return ea.Before(eb)
		case a.Ticker != b.Ticker:
			return a.Ticker < b.Ticker
		default:
			return a.TradeID < b.TradeID
		}
	})

	return positions, issues
}

func expirationOf(p types.OpenPosition) date.Date {
	if p.ExpirationDate == nil {
		return date.Date{}
	}
	return *p.ExpirationDate
}

// OpenStockPositions replays stock trades in trade-date order through a
// weighted-average cost book and returns every ticker still held.
func OpenStockPositions(trades []types.Trade) ([]types.StockPosition, []types.Issue) {
	book := NewStockBook()
	var issues []types.Issue
	for _, t := range SortedStockTrades(trades) {
		if sale, ok := book.Apply(t); ok && sale.Oversold > 0 {
			issues = append(issues, sale.Issue())
		}
	}
	return book.Positions(), issues
}
