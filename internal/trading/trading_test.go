package trading

import (
	"context"
	"testing"

	"github.com/ksred/options-tracker/internal/testutil"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.NewDB(t))
}

func optionReq(action types.Action) TradeCreate {
	put := types.OptionPut
	exp := date.MustParse("2024-02-16")
	return TradeCreate{
		Ticker:         "aapl ",
		AssetType:      types.AssetOption,
		OptionType:     &put,
		Action:         action,
		StrikePrice:    decimal.NewNullDecimal(testutil.Dec("150")),
		ExpirationDate: &exp,
		TradeDate:      date.MustParse("2024-01-01"),
		Quantity:       1,
		PricePerUnit:   testutil.Dec("2.00"),
		Fees:           testutil.Dec("0.65"),
	}
}

func stockReq(action types.Action) TradeCreate {
	return TradeCreate{
		Ticker:       "NVDA",
		AssetType:    types.AssetStock,
		Action:       action,
		TradeDate:    date.MustParse("2024-01-02"),
		Quantity:     10,
		PricePerUnit: testutil.Dec("480"),
	}
}

func validationFields(t *testing.T, err error) []string {
	t.Helper()
	ve, ok := types.IsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field)
	}
	return fields
}

func TestCreateTradeValidation(t *testing.T) {
	call := types.OptionCall
	open := types.StatusOpen
	linked := uint(1)

	testCases := []struct {
		name       string
		mutate     func(r *TradeCreate)
		base       func(types.Action) TradeCreate
		action     types.Action
		wantFields []string
	}{
		{name: "valid option", base: optionReq, action: types.ActionSTO, mutate: func(r *TradeCreate) {}},
		{name: "valid stock", base: stockReq, action: types.ActionBuy, mutate: func(r *TradeCreate) {}},
		{
			name: "missing ticker", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.Ticker = "  " },
			wantFields: []string{"ticker"},
		},
		{
			name: "unknown asset type", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.AssetType = "Bond" },
			wantFields: []string{"asset_type"},
		},
		{
			name: "option without option type", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.OptionType = nil },
			wantFields: []string{"option_type"},
		},
		{
			name: "stock with option fields", base: stockReq, action: types.ActionBuy,
			mutate: func(r *TradeCreate) {
				r.OptionType = &call
				r.StrikePrice = decimal.NewNullDecimal(testutil.Dec("100"))
			},
			wantFields: []string{"option_type", "strike_price"},
		},
		{
			name: "option action on stock", base: stockReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) {},
			wantFields: []string{"action"},
		},
		{
			name: "zero quantity", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.Quantity = 0 },
			wantFields: []string{"quantity"},
		},
		{
			name: "missing trade date", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.TradeDate = date.Date{} },
			wantFields: []string{"trade_date"},
		},
		{
			name: "negative money", base: optionReq, action: types.ActionSTO,
			mutate: func(r *TradeCreate) {
				r.PricePerUnit = testutil.Dec("-1")
				r.Fees = testutil.Dec("-0.65")
			},
			wantFields: []string{"price_per_unit", "fees"},
		},
		{
			name: "second strike on single option", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.StrikePrice2 = decimal.NewNullDecimal(testutil.Dec("160")) },
			wantFields: []string{"strike_price_2"},
		},
		{
			name: "opening trade with link", base: optionReq, action: types.ActionSTO,
			mutate:     func(r *TradeCreate) { r.LinkedTradeID = &linked },
			wantFields: []string{"linked_trade_id"},
		},
		{
			name: "open status on stock", base: stockReq, action: types.ActionBuy,
			mutate:     func(r *TradeCreate) { r.Status = &open },
			wantFields: []string{"status"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newService(t)
			req := tc.base(tc.action)
			tc.mutate(&req)

			id, err := s.CreateTrade(context.Background(), req)
			if len(tc.wantFields) == 0 {
				require.NoError(t, err)
				assert.NotZero(t, id)
				return
			}

			assert.Equal(t, tc.wantFields, validationFields(t, err))
			count, err := s.db.CountTrades(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestCreateTradeDefaults(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	openerID, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
	require.NoError(t, err)
	opener, err := s.GetTrade(ctx, openerID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", opener.Ticker)
	require.NotNil(t, opener.Status)
	assert.Equal(t, types.StatusOpen, *opener.Status)
	assert.False(t, opener.CreatedAt.IsZero())

	closeReq := optionReq(types.ActionBTC)
	closeReq.LinkedTradeID = &openerID
	closerID, err := s.CreateTrade(ctx, closeReq)
	require.NoError(t, err)
	closer, err := s.GetTrade(ctx, closerID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, *closer.Status)
	assert.Equal(t, openerID, *closer.LinkedTradeID)

	stockID, err := s.CreateTrade(ctx, stockReq(types.ActionBuy))
	require.NoError(t, err)
	stock, err := s.GetTrade(ctx, stockID)
	require.NoError(t, err)
	assert.Nil(t, stock.Status)
	assert.Nil(t, stock.ExpirationDate)
}

func TestCreateTradeLinkTargets(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	missing := uint(99)
	req := optionReq(types.ActionBTC)
	req.LinkedTradeID = &missing
	_, err := s.CreateTrade(ctx, req)
	assert.Equal(t, []string{"linked_trade_id"}, validationFields(t, err))

	closerID, err := s.CreateTrade(ctx, optionReq(types.ActionBTC))
	require.NoError(t, err)
	req.LinkedTradeID = &closerID
	_, err = s.CreateTrade(ctx, req)
	assert.Equal(t, []string{"linked_trade_id"}, validationFields(t, err))
}

func TestCreateTradeWithOutcome(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	ids, err := s.CreateTradeWithOutcome(ctx, optionReq(types.ActionSTO), types.ActionAssigned, "batch-1")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	opener, err := s.GetTrade(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, *opener.Status)
	assert.Equal(t, "batch-1", *opener.ImportBatchID)

	outcome, err := s.GetTrade(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, types.ActionAssigned, outcome.Action)
	assert.Equal(t, ids[0], *outcome.LinkedTradeID)
	assert.True(t, outcome.PricePerUnit.IsZero())
	assert.Equal(t, date.MustParse("2024-02-16"), outcome.TradeDate)
	assert.Equal(t, "Assigned (imported)", outcome.Notes)

	_, err = s.CreateTradeWithOutcome(ctx, stockReq(types.ActionBuy), types.ActionExpired, "")
	assert.Equal(t, []string{"action"}, validationFields(t, err))

	_, err = s.CreateTradeWithOutcome(ctx, optionReq(types.ActionSTO), types.ActionBTC, "")
	assert.Equal(t, []string{"outcome"}, validationFields(t, err))
}

func TestCloseTrade(t *testing.T) {
	ctx := context.Background()
	qty := func(n int64) *int64 { return &n }

	t.Run("close buys back a short", func(t *testing.T) {
		s := newService(t)
		id, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
		require.NoError(t, err)

		result, err := s.CloseTrade(ctx, id, CloseTradeRequest{
			CloseDate:  date.MustParse("2024-01-10"),
			ClosePrice: testutil.Dec("0.50"),
			CloseFees:  testutil.Dec("0.65"),
			ActionType: CloseActionClose,
		})
		require.NoError(t, err)
		assert.Zero(t, result.Remaining)

		closing, err := s.GetTrade(ctx, result.ClosingTradeID)
		require.NoError(t, err)
		assert.Equal(t, types.ActionBTC, closing.Action)
		assert.Equal(t, id, *closing.LinkedTradeID)
		assert.True(t, closing.PricePerUnit.Equal(testutil.Dec("0.50")))
		assert.Equal(t, "150", closing.StrikePrice.Decimal.String())
		assert.Equal(t, date.MustParse("2024-01-10"), closing.TradeDate)

		opener, err := s.GetTrade(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusClosed, *opener.Status)
		assert.True(t, opener.PricePerUnit.Equal(testutil.Dec("2")))

		_, err = s.CloseTrade(ctx, id, CloseTradeRequest{CloseDate: date.MustParse("2024-01-11"), ActionType: CloseActionClose})
		assert.Equal(t, []string{"trade_id"}, validationFields(t, err))
	})

	t.Run("close sells out a long", func(t *testing.T) {
		s := newService(t)
		id, err := s.CreateTrade(ctx, optionReq(types.ActionBTO))
		require.NoError(t, err)

		result, err := s.CloseTrade(ctx, id, CloseTradeRequest{
			CloseDate: date.MustParse("2024-01-10"), ClosePrice: testutil.Dec("3"), ActionType: CloseActionClose,
		})
		require.NoError(t, err)
		closing, err := s.GetTrade(ctx, result.ClosingTradeID)
		require.NoError(t, err)
		assert.Equal(t, types.ActionSTC, closing.Action)
	})

	t.Run("partial closes", func(t *testing.T) {
		s := newService(t)
		req := optionReq(types.ActionSTO)
		req.Quantity = 3
		id, err := s.CreateTrade(ctx, req)
		require.NoError(t, err)

		closeReq := CloseTradeRequest{CloseDate: date.MustParse("2024-01-10"), ActionType: CloseActionClose, Quantity: qty(1)}
		result, err := s.CloseTrade(ctx, id, closeReq)
		require.NoError(t, err)
		assert.Equal(t, int64(2), result.Remaining)

		opener, err := s.GetTrade(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.StatusOpen, *opener.Status)

		closeReq.Quantity = qty(5)
		_, err = s.CloseTrade(ctx, id, closeReq)
		assert.Equal(t, []string{"quantity"}, validationFields(t, err))

		closeReq.Quantity = nil
		result, err = s.CloseTrade(ctx, id, closeReq)
		require.NoError(t, err)
		assert.Zero(t, result.Remaining)
		closing, err := s.GetTrade(ctx, result.ClosingTradeID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), closing.Quantity)
	})

	t.Run("expired settles at zero", func(t *testing.T) {
		s := newService(t)
		id, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
		require.NoError(t, err)

		result, err := s.CloseTrade(ctx, id, CloseTradeRequest{
			CloseDate: date.MustParse("2024-02-16"), ClosePrice: testutil.Dec("9.99"), ActionType: CloseActionExpired,
		})
		require.NoError(t, err)
		closing, err := s.GetTrade(ctx, result.ClosingTradeID)
		require.NoError(t, err)
		assert.Equal(t, types.ActionExpired, closing.Action)
		assert.True(t, closing.PricePerUnit.IsZero())
	})

	t.Run("rejections", func(t *testing.T) {
		s := newService(t)
		stockID, err := s.CreateTrade(ctx, stockReq(types.ActionBuy))
		require.NoError(t, err)
		valid := CloseTradeRequest{CloseDate: date.MustParse("2024-01-10"), ActionType: CloseActionClose}

		_, err = s.CloseTrade(ctx, 404, valid)
		assert.ErrorIs(t, err, types.ErrTradeNotFound)

		_, err = s.CloseTrade(ctx, stockID, valid)
		assert.Equal(t, []string{"trade_id"}, validationFields(t, err))

		_, err = s.CloseTrade(ctx, stockID, CloseTradeRequest{ActionType: "Roll", ClosePrice: testutil.Dec("-1")})
		assert.Equal(t, []string{"action_type", "close_date", "close_price"}, validationFields(t, err))
	})
}

func TestInsertClosingTradeRechecksOpenQuantity(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	req := optionReq(types.ActionSTO)
	req.Quantity = 2
	id, err := s.CreateTrade(ctx, req)
	require.NoError(t, err)
	opener, err := s.GetTrade(ctx, id)
	require.NoError(t, err)

	closingLeg := func(n int64) *types.Trade {
		closed := types.StatusClosed
		return &types.Trade{
			Ticker:        opener.Ticker,
			AssetType:     opener.AssetType,
			OptionType:    opener.OptionType,
			Action:        types.ActionBTC,
			StrikePrice:   opener.StrikePrice,
			TradeDate:     date.MustParse("2024-01-10"),
			Quantity:      n,
			LinkedTradeID: &opener.ID,
			Status:        &closed,
		}
	}

	// Both closes were sized against the same 2 open contracts.
	left, err := s.db.InsertClosingTrade(ctx, closingLeg(2), opener.Quantity)
	require.NoError(t, err)
	assert.Zero(t, left)

	late := closingLeg(1)
	left, err = s.db.InsertClosingTrade(ctx, late, opener.Quantity)
	assert.ErrorIs(t, err, errOverClose)
	assert.Zero(t, left)
	assert.Zero(t, late.ID)

	linked, err := s.db.ListLinkedTrades(ctx, id)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, int64(2), linked[0].Quantity)

	_, err = s.CloseTrade(ctx, id, CloseTradeRequest{CloseDate: date.MustParse("2024-01-11"), ActionType: CloseActionExpired})
	assert.Equal(t, []string{"trade_id"}, validationFields(t, err))
}

func TestUpdateTrade(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	notes := "rolled"
	open := types.StatusOpen
	closed := types.StatusClosed

	optionID, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
	require.NoError(t, err)
	stockID, err := s.CreateTrade(ctx, stockReq(types.ActionBuy))
	require.NoError(t, err)

	require.NoError(t, s.UpdateTrade(ctx, optionID, TradeUpdate{Notes: &notes, Status: &closed}))
	trade, err := s.GetTrade(ctx, optionID)
	require.NoError(t, err)
	assert.Equal(t, "rolled", trade.Notes)
	assert.Equal(t, types.StatusClosed, *trade.Status)
	assert.True(t, trade.PricePerUnit.Equal(testutil.Dec("2")))

	err = s.UpdateTrade(ctx, stockID, TradeUpdate{Status: &open})
	assert.Equal(t, []string{"status"}, validationFields(t, err))

	err = s.UpdateTrade(ctx, optionID, TradeUpdate{})
	assert.Equal(t, []string{"request"}, validationFields(t, err))

	err = s.UpdateTrade(ctx, 404, TradeUpdate{Notes: &notes})
	assert.ErrorIs(t, err, types.ErrTradeNotFound)
}

func TestDeleteTradeUnlinksDependents(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	openerID, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
	require.NoError(t, err)
	result, err := s.CloseTrade(ctx, openerID, CloseTradeRequest{
		CloseDate: date.MustParse("2024-01-10"), ActionType: CloseActionExpired,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTrade(ctx, openerID))

	_, err = s.GetTrade(ctx, openerID)
	assert.ErrorIs(t, err, types.ErrTradeNotFound)

	closing, err := s.GetTrade(ctx, result.ClosingTradeID)
	require.NoError(t, err)
	assert.Nil(t, closing.LinkedTradeID)

	assert.ErrorIs(t, s.DeleteTrade(ctx, openerID), types.ErrTradeNotFound)
}

func TestListTrades(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.CreateTrade(ctx, optionReq(types.ActionSTO))
	require.NoError(t, err)
	_, err = s.CreateTrade(ctx, stockReq(types.ActionBuy))
	require.NoError(t, err)
	sell := stockReq(types.ActionSell)
	sell.TradeDate = date.MustParse("2024-03-01")
	_, err = s.CreateTrade(ctx, sell)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		filter  TradeFilter
		wantLen int
	}{
		{name: "everything", filter: TradeFilter{}, wantLen: 3},
		{name: "all is no filter", filter: TradeFilter{Ticker: "All", AssetType: "All", Action: "All"}, wantLen: 3},
		{name: "ticker is case insensitive", filter: TradeFilter{Ticker: "nvda"}, wantLen: 2},
		{name: "asset type", filter: TradeFilter{AssetType: "Option"}, wantLen: 1},
		{name: "filters combine", filter: TradeFilter{Ticker: "NVDA", Action: "Sell"}, wantLen: 1},
		{name: "no match", filter: TradeFilter{Ticker: "MSFT"}, wantLen: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trades, err := s.ListTrades(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, trades, tc.wantLen)
		})
	}

	trades, err := s.ListTrades(ctx, TradeFilter{})
	require.NoError(t, err)
	assert.Equal(t, date.MustParse("2024-03-01"), trades[0].TradeDate)
}

func TestTickers(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	tickers, err := s.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, tickers)

	_, err = s.CreateTrade(ctx, stockReq(types.ActionBuy))
	require.NoError(t, err)
	_, err = s.CreateTrade(ctx, stockReq(types.ActionSell))
	require.NoError(t, err)
	_, err = s.CreateTrade(ctx, optionReq(types.ActionSTO))
	require.NoError(t, err)

	tickers, err = s.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "NVDA"}, tickers)
}

func TestLoadSampleData(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	inserted, err := s.LoadSampleData(ctx)
	require.NoError(t, err)
	assert.True(t, inserted)

	trades, err := s.ListTrades(ctx, TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 4)

	inserted, err = s.LoadSampleData(ctx)
	require.NoError(t, err)
	assert.False(t, inserted)

	trades, err = s.ListTrades(ctx, TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 4)
}
