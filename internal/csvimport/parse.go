package csvimport

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
)

// parsedAction is what an action cell says about the trade.
type parsedAction struct {
	asset      types.AssetType
	action     types.Action
	optionType *types.OptionType
}

// parseAction reads broker-style action cells such as "STO Put",
// "Sell to Open Call", "Stock Buy" or "Call Spread BTO".
func parseAction(raw string) (parsedAction, error) {
	token := strings.ToLower(strings.TrimSpace(raw))
	words := strings.FieldsFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	has := func(w string) bool {
		for _, x := range words {
			if x == w {
				return true
			}
		}
		return false
	}
	closing := strings.Contains(token, "close") || has("btc") || has("stc")

	switch {
	case token == "":
		return parsedAction{}, rejectf("missing action")

	case strings.Contains(token, "stock") || has("etf") || has("shares"):
		p := parsedAction{asset: types.AssetStock, action: types.ActionSell}
		if strings.Contains(token, "buy") {
			p.action = types.ActionBuy
		}
		return p, nil

	case strings.Contains(token, "spread") || strings.Contains(token, "collar"):
		opt := types.OptionPut
		if strings.Contains(token, "call") {
			opt = types.OptionCall
		}
		p := parsedAction{asset: types.AssetSpread, optionType: &opt}
		switch {
		case closing && (has("btc") || strings.Contains(token, "buy")):
			p.action = types.ActionBTC
		case closing:
			p.action = types.ActionSTC
		case has("sto") || strings.Contains(token, "sell to open") || strings.Contains(token, "credit"):
			p.action = types.ActionSTO
		default:
			p.action = types.ActionBTO
		}
		return p, nil
	}

	p := parsedAction{asset: types.AssetOption}
	switch {
	case has("btc") || strings.Contains(token, "buy to close"):
		p.action = types.ActionBTC
	case has("stc") || strings.Contains(token, "sell to close"):
		p.action = types.ActionSTC
	case has("sto") || strings.Contains(token, "sell to open"):
		p.action = types.ActionSTO
	case has("bto") || strings.Contains(token, "buy to open"):
		p.action = types.ActionBTO
	case strings.HasPrefix(token, "sell") && !closing:
		p.action = types.ActionSTO
	case strings.HasPrefix(token, "buy") && !closing:
		p.action = types.ActionBTO
	}

	var opt types.OptionType
	switch {
	case strings.Contains(token, "put"):
		opt = types.OptionPut
	case strings.Contains(token, "call") || has("cc"):
		opt = types.OptionCall
	}

	if p.action == "" || opt == "" {
		return parsedAction{}, rejectf("Cannot parse '%s'", strings.TrimSpace(raw))
	}
	p.optionType = &opt
	return p, nil
}

// blank reports whether a cell carries no value.
func blank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "-", "--":
		return true
	}
	return false
}

// parseAmount reads a money or quantity cell, tolerating "$", thousands
// separators and accounting parentheses. The sign is dropped.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.NewReplacer("$", "", ",", "", " ", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Abs(), nil
}

// parseStrike reads a strike cell. "190-210" yields both spread strikes.
func parseStrike(raw string) (decimal.NullDecimal, decimal.NullDecimal, error) {
	var low, high decimal.NullDecimal
	if blank(raw) {
		return low, high, nil
	}
	s := strings.NewReplacer("$", "", " ", "").Replace(strings.TrimSpace(raw))
	parts := strings.SplitN(s, "-", 2)
	if len(parts) == 2 && parts[0] != "" {
		a, err := parseAmount(parts[0])
		if err != nil {
			return low, high, err
		}
		b, err := parseAmount(parts[1])
		if err != nil {
			return low, high, err
		}
		return decimal.NewNullDecimal(a), decimal.NewNullDecimal(b), nil
	}
	v, err := parseAmount(s)
	if err != nil {
		return low, high, err
	}
	return decimal.NewNullDecimal(v), high, nil
}

// parseOutcome reads the expired flag column.
func parseOutcome(raw string) types.Action {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case v == "yes" || v == "y" || v == "true" || v == "1" || v == "expired":
		return types.ActionExpired
	case strings.Contains(v, "assigned"):
		return types.ActionAssigned
	}
	return ""
}

// rowError is a reason a single row was rejected.
type rowError struct {
	reason string
}

func (e *rowError) Error() string { return e.reason }

func rejectf(format string, args ...any) error {
	return &rowError{reason: fmt.Sprintf(format, args...)}
}

// convertRow turns one CSV record into a trade request and an optional
// Expired or Assigned outcome for it.
func convertRow(row map[string]string, m ColumnMapping, defaultYear int) (trading.TradeCreate, types.Action, error) {
	var req trading.TradeCreate

	ticker := strings.TrimSpace(row[m.Ticker])
	if blank(ticker) {
		return req, "", rejectf("missing ticker")
	}
	req.Ticker = ticker

	action, err := parseAction(row[m.Action])
	if err != nil {
		return req, "", err
	}
	req.AssetType = action.asset
	req.Action = action.action
	req.OptionType = action.optionType

	rawDate := row[m.TradeDate]
	if blank(rawDate) {
		return req, "", rejectf("missing trade date")
	}
	tradeDate, err := date.ParseLoose(rawDate, defaultYear)
	if err != nil {
		return req, "", rejectf("invalid trade date '%s'", strings.TrimSpace(rawDate))
	}
	req.TradeDate = tradeDate

	rawQty := row[m.Quantity]
	if blank(rawQty) {
		return req, "", rejectf("missing quantity")
	}
	qty, err := parseAmount(rawQty)
	if err != nil {
		return req, "", rejectf("invalid quantity '%s'", strings.TrimSpace(rawQty))
	}
	qty = qty.Truncate(0)
	if !qty.BigInt().IsInt64() {
		return req, "", rejectf("invalid quantity '%s'", strings.TrimSpace(rawQty))
	}
	req.Quantity = qty.IntPart()
	if req.Quantity < 1 {
		return req, "", rejectf("quantity must be at least 1, got '%s'", strings.TrimSpace(rawQty))
	}

	rawPrice := row[m.Price]
	if blank(rawPrice) {
		return req, "", rejectf("missing price")
	}
	req.PricePerUnit, err = parseAmount(rawPrice)
	if err != nil {
		return req, "", rejectf("invalid price '%s'", strings.TrimSpace(rawPrice))
	}

	if m.Fees != "" && !blank(row[m.Fees]) {
		req.Fees, err = parseAmount(row[m.Fees])
		if err != nil {
			return req, "", rejectf("invalid fees '%s'", strings.TrimSpace(row[m.Fees]))
		}
	}

	if m.Notes != "" {
		req.Notes = strings.TrimSpace(row[m.Notes])
	}

	if req.AssetType == types.AssetStock {
		return req, "", nil
	}

	if m.Strike != "" {
		strike, strike2, err := parseStrike(row[m.Strike])
		if err != nil {
			return req, "", rejectf("invalid strike '%s'", strings.TrimSpace(row[m.Strike]))
		}
		req.StrikePrice = strike
		if req.AssetType == types.AssetSpread {
			req.StrikePrice2 = strike2
		}
	}

	if m.Expiration != "" && !blank(row[m.Expiration]) {
		exp, err := date.ParseLoose(row[m.Expiration], defaultYear)
		if err != nil {
			return req, "", rejectf("invalid expiration date '%s'", strings.TrimSpace(row[m.Expiration]))
		}
		req.ExpirationDate = &exp
	}

	var outcome types.Action
	if m.ExpiredFlag != "" && req.AssetType == types.AssetOption && req.Action.IsOpening() {
		outcome = parseOutcome(row[m.ExpiredFlag])
	}
	return req, outcome, nil
}
