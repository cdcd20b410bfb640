package trading

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ksred/options-tracker/internal/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go struct field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkStruct runs the struct tag rules and appends each failure to ve.
func checkStruct(ve *types.ValidationError, s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add("request", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), "%s", describeTag(fe))
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// normalize cleans free-form input before validation.
func (req *TradeCreate) normalize() {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	req.Notes = strings.TrimSpace(req.Notes)
}

// validateShape checks everything that does not need the ledger.
func (req *TradeCreate) validateShape() *types.ValidationError {
	ve := &types.ValidationError{}
	checkStruct(ve, req)

	if req.AssetType.Valid() && req.Action.Valid() && !req.Action.AllowedFor(req.AssetType) {
		ve.Add("action", "%s is not a valid action for %s trades", req.Action, req.AssetType)
	}

	switch req.AssetType {
	case types.AssetStock:
		if req.OptionType != nil {
			ve.Add("option_type", "must be empty for stock trades")
		}
		if req.StrikePrice.Valid || req.StrikePrice2.Valid {
			ve.Add("strike_price", "must be empty for stock trades")
		}
		if req.ExpirationDate != nil && !req.ExpirationDate.IsZero() {
			ve.Add("expiration_date", "must be empty for stock trades")
		}
	case types.AssetOption, types.AssetSpread:
		if req.OptionType == nil {
			ve.Add("option_type", "is required for %s trades", req.AssetType)
		}
		if req.AssetType == types.AssetOption && req.StrikePrice2.Valid {
			ve.Add("strike_price_2", "is only allowed on spreads")
		}
	}

	if req.StrikePrice.Valid && !req.StrikePrice.Decimal.IsPositive() {
		ve.Add("strike_price", "must be greater than 0")
	}
	if req.StrikePrice2.Valid && !req.StrikePrice2.Decimal.IsPositive() {
		ve.Add("strike_price_2", "must be greater than 0")
	}
	if req.TradeDate.IsZero() {
		ve.Add("trade_date", "is required")
	}
	if req.PricePerUnit.IsNegative() {
		ve.Add("price_per_unit", "must not be negative")
	}
	if req.Fees.IsNegative() {
		ve.Add("fees", "must not be negative")
	}

	if req.LinkedTradeID != nil && req.Action.Valid() && !req.Action.IsClosing() {
		ve.Add("linked_trade_id", "only closing actions (BTC, STC, Expired, Assigned) can link to another trade")
	}
	if req.Status != nil && *req.Status == types.StatusOpen &&
		!(req.AssetType.HasContracts() && req.Action.IsOpening()) {
		ve.Add("status", "Open is only valid for opening option or spread trades")
	}

	return ve
}

func (req *CloseTradeRequest) validate() *types.ValidationError {
	ve := &types.ValidationError{}
	checkStruct(ve, req)
	if req.CloseDate.IsZero() {
		ve.Add("close_date", "is required")
	}
	if req.ClosePrice.IsNegative() {
		ve.Add("close_price", "must not be negative")
	}
	if req.CloseFees.IsNegative() {
		ve.Add("close_fees", "must not be negative")
	}
	return ve
}

func (req *TradeUpdate) validate() *types.ValidationError {
	ve := &types.ValidationError{}
	checkStruct(ve, req)
	if req.Notes == nil && req.Status == nil {
		ve.Add("request", "nothing to update: set notes or status")
	}
	return ve
}
