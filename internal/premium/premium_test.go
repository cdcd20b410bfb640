package premium

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/testutil"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createStock(t *testing.T, s *trading.Service, action types.Action, day string) uint {
	t.Helper()
	id, err := s.CreateTrade(context.Background(), trading.TradeCreate{
		Ticker:       "NVDA",
		AssetType:    types.AssetStock,
		Action:       action,
		TradeDate:    date.MustParse(day),
		Quantity:     10,
		PricePerUnit: testutil.Dec("100"),
		Fees:         testutil.Dec("1"),
	})
	require.NoError(t, err)
	return id
}

func TestByPeriodSkipsCorruptDates(t *testing.T) {
	db := testutil.NewDB(t)
	tradingService := trading.NewService(db)
	service := NewService(tradingService)

	createStock(t, tradingService, types.ActionBuy, "2024-01-05")
	bad := createStock(t, tradingService, types.ActionSell, "2024-01-06")
	require.NoError(t, db.Exec("UPDATE trades SET trade_date = ? WHERE id = ?", "not-a-date", bad).Error)

	report, err := service.ByPeriod(context.Background(), "month", "")
	require.NoError(t, err)
	require.Len(t, report.Periods, 1)
	assert.Equal(t, 1, report.Periods[0].NumTrades)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, bad, report.Issues[0].TradeID)
}

func TestByPeriodHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tradingService := trading.NewService(testutil.NewDB(t))
	createStock(t, tradingService, types.ActionBuy, "2024-01-05")
	createStock(t, tradingService, types.ActionSell, "2024-02-06")

	router := gin.New()
	router.GET("/premium/:period", NewGinHandlers(NewService(tradingService)).ByPeriodHandler())

	testCases := []struct {
		name       string
		url        string
		wantStatus int
		wantLen    int
	}{
		{name: "month", url: "/premium/month", wantStatus: http.StatusOK, wantLen: 2},
		{name: "year", url: "/premium/year", wantStatus: http.StatusOK, wantLen: 1},
		{name: "filtered out", url: "/premium/year?asset_type=Option", wantStatus: http.StatusOK, wantLen: 0},
		{name: "all assets", url: "/premium/week?asset_type=All", wantStatus: http.StatusOK, wantLen: 2},
		{name: "bad period", url: "/premium/decade", wantStatus: http.StatusUnprocessableEntity},
		{name: "bad asset", url: "/premium/month?asset_type=Bond", wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.url, nil))
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.wantStatus != http.StatusOK {
				return
			}

			var body struct {
				Data []types.PremiumPeriod `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Data, tc.wantLen)
		})
	}
}
