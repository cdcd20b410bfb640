package csvimport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/testutil"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokerCSV = "\ufeffOption,Action,Strike,Expiration,Transaction Date,# Contracts,Price,Fees,Expired,Notes\n" +
	"AAPL,STO Call,180,3/15/24,1/2/24,1,3.25,0.65,,covered call\n" +
	"msft,Sell to Open Put,400,3/15/24,1/3/24,2,$4.10,1.30,yes,\n" +
	"TSLA,BTO Call,250,3/15/24,1/4/24,abc,5.00,0.65,,\n" +
	"NVDA,Stock Buy,,,1/5/24,\"1,000\",$480.50,0,,\n" +
	"SPY,Put Spread STO,470-460,3/15/24,1/8,1,1.20,1.30,,\n"

func newImporter(t *testing.T, cfg Config) (*Service, *trading.Service) {
	t.Helper()
	tradingService := trading.NewService(testutil.NewDB(t))
	return NewService(tradingService, cfg), tradingService
}

func TestPreview(t *testing.T) {
	service, _ := newImporter(t, Config{PreviewRows: 2})

	preview, err := service.Preview(strings.NewReader(brokerCSV))
	require.NoError(t, err)

	assert.Equal(t, "Option", preview.Columns[0])
	assert.Len(t, preview.Columns, 10)
	assert.Equal(t, 5, preview.RowCount)
	require.Len(t, preview.Rows, 2)
	assert.Equal(t, "AAPL", preview.Rows[0]["Option"])
	assert.Equal(t, "$4.10", preview.Rows[1]["Price"])
	assert.Equal(t, "# Contracts", preview.SuggestedMapping.Quantity)
	assert.Equal(t, "Expired", preview.SuggestedMapping.ExpiredFlag)

	_, err = service.Preview(strings.NewReader(""))
	_, isValidation := types.IsValidation(err)
	assert.True(t, isValidation)
}

func TestPreviewRowsCappedAtTen(t *testing.T) {
	service, _ := newImporter(t, Config{PreviewRows: 50})

	var b strings.Builder
	b.WriteString("Ticker,Action,Transaction Date,Quantity,Price\n")
	for i := 0; i < 12; i++ {
		b.WriteString("AAPL,Stock Buy,1/2/24,1,180\n")
	}

	preview, err := service.Preview(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 12, preview.RowCount)
	assert.Len(t, preview.Rows, 10)
}

func TestProcessContinuesPastBadRows(t *testing.T) {
	service, tradingService := newImporter(t, Config{DefaultYear: 2024})
	ctx := context.Background()

	result, err := service.Process(ctx, strings.NewReader(brokerCSV), ColumnMapping{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Imported)
	assert.Equal(t, 1, result.TotalErrors)
	assert.Equal(t, []string{"Row 4: invalid quantity 'abc'"}, result.Errors)
	assert.NotEmpty(t, result.BatchID)

	trades, err := tradingService.ListTrades(ctx, trading.TradeFilter{})
	require.NoError(t, err)
	// MSFT carries an Expired outcome, so five rows produce five trades.
	require.Len(t, trades, 5)

	byTicker := map[string][]types.Trade{}
	for _, tr := range trades {
		byTicker[tr.Ticker] = append(byTicker[tr.Ticker], tr)
		require.NotNil(t, tr.ImportBatchID)
		assert.Equal(t, result.BatchID, *tr.ImportBatchID)
	}
	assert.NotContains(t, byTicker, "TSLA")

	msft := byTicker["MSFT"]
	require.Len(t, msft, 2)
	var opener, expired types.Trade
	for _, tr := range msft {
		if tr.Action == types.ActionSTO {
			opener = tr
		} else {
			expired = tr
		}
	}
	assert.Equal(t, types.ActionExpired, expired.Action)
	require.NotNil(t, expired.LinkedTradeID)
	assert.Equal(t, opener.ID, *expired.LinkedTradeID)
	assert.Equal(t, date.MustParse("2024-03-15"), expired.TradeDate)
	require.NotNil(t, opener.Status)
	assert.Equal(t, types.StatusClosed, *opener.Status)

	nvda := byTicker["NVDA"][0]
	assert.Equal(t, types.AssetStock, nvda.AssetType)
	assert.Equal(t, int64(1000), nvda.Quantity)
	assert.Nil(t, nvda.Status)

	spy := byTicker["SPY"][0]
	assert.Equal(t, date.MustParse("2024-01-08"), spy.TradeDate)
	assert.True(t, spy.StrikePrice2.Decimal.Equal(testutil.Dec("460")))
}

func TestProcessErrorsAreRepeatable(t *testing.T) {
	service, tradingService := newImporter(t, Config{DefaultYear: 2024})
	ctx := context.Background()

	// The strike passes parsing but fails trade validation, and the Expired
	// flag means the row would have written two trades.
	csv := "Symbol,Action,Strike,Expiration,Date,Quantity,Price,Expired\n" +
		"AAPL,STO Put,0,3/15/24,1/2/24,1,2.00,yes\n"

	first, err := service.Process(ctx, strings.NewReader(csv), ColumnMapping{})
	require.NoError(t, err)
	second, err := service.Process(ctx, strings.NewReader(csv), ColumnMapping{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Row 2: strike_price must be greater than 0"}, first.Errors)
	assert.Equal(t, first.Errors, second.Errors)
	assert.Zero(t, first.Imported)
	assert.NotEqual(t, first.BatchID, second.BatchID)

	trades, err := tradingService.ListTrades(ctx, trading.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestProcessReportsFileLines(t *testing.T) {
	service, _ := newImporter(t, Config{DefaultYear: 2024})

	csv := "Symbol,Action,Date,Quantity,Price\n" +
		"\n" +
		"AAPL,Roll,1/2/24,1,1\n" +
		"AAPL,Stock Buy,1/2/24,1,1\n"

	result, err := service.Process(context.Background(), strings.NewReader(csv), ColumnMapping{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 3: Cannot parse 'Roll'"}, result.Errors)
	assert.Equal(t, 1, result.Imported)
}

func TestProcessTruncatesReportedErrors(t *testing.T) {
	service, _ := newImporter(t, Config{MaxReportedErrors: 1})

	csv := "Symbol,Action,Date,Quantity,Price\n" +
		",Stock Buy,1/2/24,1,1\n" +
		"AAPL,Stock Buy,,1,1\n" +
		"AAPL,Stock Buy,1/2/24,1,\n"

	result, err := service.Process(context.Background(), strings.NewReader(csv), ColumnMapping{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalErrors)
	assert.Equal(t, []string{"Row 2: missing ticker"}, result.Errors)
}

func TestProcessRejectsIncompleteMapping(t *testing.T) {
	service, tradingService := newImporter(t, Config{})
	ctx := context.Background()

	mapping := ColumnMapping{Ticker: "Ticker", Action: "Action", TradeDate: "Date", Quantity: "Qty", Price: "Price"}
	_, err := service.Process(ctx, strings.NewReader("Symbol,Action,Date,Qty,Price\nAAPL,Stock Buy,1/2/24,1,1\n"), mapping)

	ve, isValidation := types.IsValidation(err)
	require.True(t, isValidation)
	assert.Equal(t, "mapping.ticker", ve.Fields[0].Field)

	trades, err := tradingService.ListTrades(ctx, trading.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func multipartBody(t *testing.T, fields map[string]string, file string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != "" {
		part, err := w.CreateFormFile("file", "trades.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(file))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	service, _ := newImporter(t, Config{DefaultYear: 2024})
	handlers := NewGinHandlers(service)
	router := gin.New()
	router.POST("/import/preview", handlers.PreviewHandler())
	router.POST("/import/process", handlers.ProcessHandler())

	mapping, err := json.Marshal(ColumnMapping{
		Ticker: "Option", Action: "Action", Strike: "Strike", Expiration: "Expiration",
		TradeDate: "Transaction Date", Quantity: "# Contracts", Price: "Price",
	})
	require.NoError(t, err)

	testCases := []struct {
		name       string
		path       string
		fields     map[string]string
		file       string
		wantStatus int
		check      func(t *testing.T, data json.RawMessage)
	}{
		{
			name:       "preview",
			path:       "/import/preview",
			file:       brokerCSV,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, data json.RawMessage) {
				var p Preview
				require.NoError(t, json.Unmarshal(data, &p))
				assert.Equal(t, 5, p.RowCount)
				assert.Equal(t, "Option", p.SuggestedMapping.Ticker)
			},
		},
		{
			name:       "preview without file",
			path:       "/import/preview",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "process with explicit mapping",
			path:       "/import/process",
			fields:     map[string]string{"mapping": string(mapping)},
			file:       brokerCSV,
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, data json.RawMessage) {
				var r types.ImportResult
				require.NoError(t, json.Unmarshal(data, &r))
				assert.Equal(t, 4, r.Imported)
				assert.Equal(t, 1, r.TotalErrors)
			},
		},
		{
			name:       "malformed mapping",
			path:       "/import/process",
			fields:     map[string]string{"mapping": "{"},
			file:       brokerCSV,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "mapping names missing column",
			path:       "/import/process",
			fields:     map[string]string{"mapping": `{"ticker":"Symbol"}`},
			file:       brokerCSV,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fields, tc.file)
			req := httptest.NewRequest(http.MethodPost, tc.path, body)
			req.Header.Set("Content-Type", contentType)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, tc.wantStatus, w.Code, w.Body.String())

			if tc.check != nil {
				var envelope struct {
					Data json.RawMessage `json:"data"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
				tc.check(t, envelope.Data)
			}
		})
	}
}
