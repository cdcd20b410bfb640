package types

import (
	"time"

	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

type AssetType string

const (
	AssetOption AssetType = "Option"
	AssetStock  AssetType = "Stock"
	AssetSpread AssetType = "Spread"
)

// Valid reports whether a is a known asset type.
func (a AssetType) Valid() bool {
	return a == AssetOption || a == AssetStock || a == AssetSpread
}

// HasContracts reports whether quantities of a are option contracts.
func (a AssetType) HasContracts() bool {
	return a == AssetOption || a == AssetSpread
}

// Multiplier converts a per-unit price into cash: 100 shares per contract, 1 per share.
func (a AssetType) Multiplier() decimal.Decimal {
	if a.HasContracts() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

type OptionType string

const (
	OptionCall OptionType = "Call"
	OptionPut  OptionType = "Put"
)

func (o OptionType) Valid() bool { return o == OptionCall || o == OptionPut }

type Action string

const (
	ActionSTO      Action = "STO"
	ActionBTO      Action = "BTO"
	ActionBTC      Action = "BTC"
	ActionSTC      Action = "STC"
	ActionBuy      Action = "Buy"
	ActionSell     Action = "Sell"
	ActionExpired  Action = "Expired"
	ActionAssigned Action = "Assigned"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionSTO, ActionBTO, ActionBTC, ActionSTC, ActionBuy, ActionSell, ActionExpired, ActionAssigned:
		return true
	}
	return false
}

// IsOpening reports whether a opens an option or spread position.
func (a Action) IsOpening() bool { return a == ActionSTO || a == ActionBTO }

// IsClosing reports whether a reduces a linked option or spread position.
func (a Action) IsClosing() bool {
	return a == ActionBTC || a == ActionSTC || a == ActionExpired || a == ActionAssigned
}

// IsCredit reports whether a receives premium or proceeds.
func (a Action) IsCredit() bool {
	switch a {
	case ActionSTO, ActionSTC, ActionSell, ActionExpired, ActionAssigned:
		return true
	}
	return false
}

// AllowedFor reports whether the action can be recorded against the asset type.
func (a Action) AllowedFor(asset AssetType) bool {
	if asset == AssetStock {
		return a == ActionBuy || a == ActionSell
	}
	return a.IsOpening() || a.IsClosing()
}

type TradeStatus string

const (
	StatusOpen   TradeStatus = "Open"
	StatusClosed TradeStatus = "Closed"
)

func (s TradeStatus) Valid() bool { return s == StatusOpen || s == StatusClosed }

// Trade is one row of the ledger. A close never mutates its opening trade;
// it is recorded as a new Trade whose LinkedTradeID points back.
type Trade struct {
	ID             uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	Ticker         string              `gorm:"not null" json:"ticker"`
	AssetType      AssetType           `gorm:"not null" json:"asset_type"`
	OptionType     *OptionType         `json:"option_type"`
	Action         Action              `gorm:"not null" json:"action"`
	StrikePrice    decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"strike_price"`
	StrikePrice2   decimal.NullDecimal `gorm:"column:strike_price_2;type:decimal(20,8)" json:"strike_price_2"`
	ExpirationDate *date.Date          `json:"expiration_date"`
	TradeDate      date.Date           `gorm:"not null" json:"trade_date"`
	Quantity       int64               `gorm:"not null" json:"quantity"`
	PricePerUnit   decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"price_per_unit"`
	Fees           decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"fees"`
	Notes          string              `json:"notes"`
	LinkedTradeID  *uint               `json:"linked_trade_id"`
	Status         *TradeStatus        `json:"status"`
	ImportBatchID  *string             `json:"import_batch_id,omitempty"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// Expiration returns the expiration date or the zero Date when absent.
func (t Trade) Expiration() date.Date {
	if t.ExpirationDate == nil {
		return date.Date{}
	}
	return *t.ExpirationDate
}

// OptionKind returns the option type or "" for stock trades.
func (t Trade) OptionKind() OptionType {
	if t.OptionType == nil {
		return ""
	}
	return *t.OptionType
}

// Notional is price × quantity × multiplier, unsigned.
func (t Trade) Notional() decimal.Decimal {
	return t.PricePerUnit.Mul(decimal.NewFromInt(t.Quantity)).Mul(t.AssetType.Multiplier())
}
