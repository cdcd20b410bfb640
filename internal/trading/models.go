package trading

import (
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

// TradeCreate is the payload for recording a new trade.
type TradeCreate struct {
	Ticker         string              `json:"ticker" validate:"required,max=16"`
	AssetType      types.AssetType     `json:"asset_type" validate:"required,oneof=Option Stock Spread"`
	OptionType     *types.OptionType   `json:"option_type" validate:"omitempty,oneof=Call Put"`
	Action         types.Action        `json:"action" validate:"required,oneof=STO BTO BTC STC Buy Sell Expired Assigned"`
	StrikePrice    decimal.NullDecimal `json:"strike_price"`
	StrikePrice2   decimal.NullDecimal `json:"strike_price_2"`
	ExpirationDate *date.Date          `json:"expiration_date"`
	TradeDate      date.Date           `json:"trade_date"`
	Quantity       int64               `json:"quantity" validate:"gt=0"`
	PricePerUnit   decimal.Decimal     `json:"price_per_unit"`
	Fees           decimal.Decimal     `json:"fees"`
	Notes          string              `json:"notes" validate:"max=2000"`
	LinkedTradeID  *uint               `json:"linked_trade_id"`
	Status         *types.TradeStatus  `json:"status" validate:"omitempty,oneof=Open Closed"`
}

// TradeUpdate carries the only mutable trade fields. Nil means unchanged.
type TradeUpdate struct {
	Notes  *string            `json:"notes" validate:"omitempty,max=2000"`
	Status *types.TradeStatus `json:"status" validate:"omitempty,oneof=Open Closed"`
}

// Close kinds accepted by CloseTradeRequest.ActionType.
const (
	CloseActionClose    = "Close"
	CloseActionExpired  = "Expired"
	CloseActionAssigned = "Assigned"
)

// CloseTradeRequest closes some or all of an open option or spread trade.
// Quantity defaults to everything still open.
type CloseTradeRequest struct {
	CloseDate  date.Date       `json:"close_date"`
	ClosePrice decimal.Decimal `json:"close_price"`
	CloseFees  decimal.Decimal `json:"close_fees"`
	ActionType string          `json:"action_type" validate:"required,oneof=Close Expired Assigned"`
	Quantity   *int64          `json:"quantity" validate:"omitempty,gt=0"`
}

// TradeFilter narrows a trade listing. Empty fields and "All" match everything.
type TradeFilter struct {
	Ticker    string `form:"ticker"`
	AssetType string `form:"asset_type"`
	Action    string `form:"action"`
}

// CloseResult identifies the closing trade and what is left open.
type CloseResult struct {
	ClosingTradeID uint  `json:"closing_trade_id"`
	Remaining      int64 `json:"remaining_quantity"`
}
