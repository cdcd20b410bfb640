package types

import (
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

// Issue kinds reported next to derived results when ledger data had to be
// skipped or defaulted.
const (
	IssueOrphanLink    = "orphan_link"
	IssueUnlinkedClose = "unlinked_close"
	IssueOverClose     = "over_close"
	IssueOversold      = "oversold"
	IssueMissingDate   = "missing_trade_date"
	IssueUnpriced      = "unpriced_position"
)

// Values of PnLSummary.UnrealizedStatus.
const (
	UnrealizedUnavailable = "unavailable"
	UnrealizedPriced      = "priced"
	UnrealizedPartial     = "partial"
)

// Issue is a data-quality diagnostic. It never changes how a result is
// computed, it only explains what was excluded or defaulted.
type Issue struct {
	Kind    string `json:"kind"`
	TradeID uint   `json:"trade_id,omitempty"`
	Ticker  string `json:"ticker,omitempty"`
	Message string `json:"message"`
}

// PnLSummary is the whole-ledger profit and loss.
type PnLSummary struct {
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	TotalFees        decimal.Decimal `json:"total_fees"`
	UnrealizedStatus string          `json:"unrealized_status"`
	Issues           []Issue         `json:"issues,omitempty"`
}

// Rounded returns a copy with every amount rounded to cents.
func (s PnLSummary) Rounded() PnLSummary {
	s.TotalPnL = s.TotalPnL.Round(2)
	s.RealizedPnL = s.RealizedPnL.Round(2)
	s.UnrealizedPnL = s.UnrealizedPnL.Round(2)
	s.TotalFees = s.TotalFees.Round(2)
	return s
}

// PremiumPeriod is the net premium of one calendar bucket.
type PremiumPeriod struct {
	Period     string          `json:"period"`
	NetPremium decimal.Decimal `json:"net_premium"`
	TotalFees  decimal.Decimal `json:"total_fees"`
	NumTrades  int             `json:"num_trades"`
}

func (p PremiumPeriod) Rounded() PremiumPeriod {
	p.NetPremium = p.NetPremium.Round(2)
	p.TotalFees = p.TotalFees.Round(2)
	return p
}

// PremiumReport is the bucket list together with anything left out of it.
type PremiumReport struct {
	Periods []PremiumPeriod `json:"periods"`
	Issues  []Issue         `json:"issues,omitempty"`
}

// OpenPosition is an option or spread group that still has contracts open.
// Quantity is the remaining quantity; PricePerUnit is the entry price.
type OpenPosition struct {
	TradeID        uint                `json:"id"`
	Ticker         string              `json:"ticker"`
	AssetType      AssetType           `json:"asset_type"`
	OptionType     OptionType          `json:"option_type"`
	Action         Action              `json:"action"`
	StrikePrice    decimal.NullDecimal `json:"strike_price"`
	StrikePrice2   decimal.NullDecimal `json:"strike_price_2"`
	ExpirationDate *date.Date          `json:"expiration_date"`
	TradeDate      date.Date           `json:"trade_date"`
	Quantity       int64               `json:"quantity"`
	OpenedQuantity int64               `json:"opened_quantity"`
	PricePerUnit   decimal.Decimal     `json:"price_per_unit"`
	Fees           decimal.Decimal     `json:"fees"`
	Notes          string              `json:"notes"`
}

// StockPosition is the net holding of one ticker under weighted-average cost.
type StockPosition struct {
	Ticker    string          `json:"ticker"`
	Shares    int64           `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
}

func (p StockPosition) Rounded() StockPosition {
	p.CostBasis = p.CostBasis.Round(2)
	p.AvgCost = p.AvgCost.Round(2)
	return p
}

// ImportResult reports a CSV commit. Errors may be truncated; TotalErrors never is.
type ImportResult struct {
	Imported    int      `json:"imported"`
	Errors      []string `json:"errors"`
	TotalErrors int      `json:"total_errors"`
	BatchID     string   `json:"batch_id"`
}
