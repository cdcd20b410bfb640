package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
)

const (
	numWorkers      = 5
	maxRetries      = 3
	defaultAddress  = "http://localhost:8080"
	tradesPerWorker = 6
)

var (
	tickers = []string{"AAPL", "MSFT", "NVDA", "TSLA", "SPY"}
	strikes = []int64{90, 100, 110, 120}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient drives a running tracker API over HTTP
type simulationClient struct {
	baseURL string
	client  *http.Client
	mu      sync.Mutex
	stats   map[string]*routeStats
}

func newSimulationClient(baseURL string) *simulationClient {
	return &simulationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"sample":    {name: "Sample Data"},
			"create":    {name: "Create Trade"},
			"close":     {name: "Close Trade"},
			"import":    {name: "CSV Import"},
			"positions": {name: "Open Positions"},
			"summary":   {name: "P&L Summary"},
			"premium":   {name: "Premium"},
		},
	}
}

func (sc *simulationClient) record(route string, d time.Duration, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(d)
	if failed {
		sc.stats[route].failures++
	}
}

// call sends one request and decodes the envelope's data into out.
// Rate-limited requests are retried with a growing pause.
func (sc *simulationClient) call(route, method, path, contentType string, body []byte, out interface{}) error {
	var (
		resp     *http.Response
		respBody []byte
	)
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(method, sc.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := time.Now()
		resp, err = sc.client.Do(req)
		if err != nil {
			sc.record(route, time.Since(start), true)
			return err
		}
		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		failed := err != nil || resp.StatusCode >= 300
		sc.record(route, time.Since(start), failed)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			break
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func (sc *simulationClient) callJSON(route, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	return sc.call(route, method, path, "application/json", body, out)
}

func (sc *simulationClient) loadSampleData() (bool, error) {
	var result struct {
		Inserted bool `json:"inserted"`
	}
	err := sc.callJSON("sample", http.MethodPost, "/api/v1/sample-data", nil, &result)
	return result.Inserted, err
}

func (sc *simulationClient) createTrade(req trading.TradeCreate) (uint, error) {
	var result struct {
		ID uint `json:"id"`
	}
	if err := sc.callJSON("create", http.MethodPost, "/api/v1/trades", req, &result); err != nil {
		return 0, err
	}
	if result.ID == 0 {
		return 0, fmt.Errorf("no trade ID in response")
	}
	return result.ID, nil
}

func (sc *simulationClient) closeTrade(id uint, req trading.CloseTradeRequest) (*trading.CloseResult, error) {
	var result trading.CloseResult
	err := sc.callJSON("close", http.MethodPost, fmt.Sprintf("/api/v1/trades/%d/close", id), req, &result)
	return &result, err
}

func (sc *simulationClient) importCSV(content string) (*types.ImportResult, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "simulation.csv")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var result types.ImportResult
	err = sc.call("import", http.MethodPost, "/api/v1/import/process", w.FormDataContentType(), body.Bytes(), &result)
	return &result, err
}

func (sc *simulationClient) openPositions() ([]types.OpenPosition, error) {
	var result []types.OpenPosition
	err := sc.callJSON("positions", http.MethodGet, "/api/v1/positions/options", nil, &result)
	return result, err
}

func (sc *simulationClient) summary() (*types.PnLSummary, error) {
	var result types.PnLSummary
	err := sc.callJSON("summary", http.MethodGet, "/api/v1/dashboard/summary", nil, &result)
	return &result, err
}

func (sc *simulationClient) premium(period string) ([]types.PremiumPeriod, error) {
	var result []types.PremiumPeriod
	err := sc.callJSON("premium", http.MethodGet, "/api/v1/dashboard/premium/"+period, nil, &result)
	return result, err
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	routes := make([]string, 0, len(sc.stats))
	for route := range sc.stats {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	for _, route := range routes {
		stats := sc.stats[route]
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// usd renders a decimal dollar amount with currency formatting
func usd(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), money.USD).Display()
}

// randomTrade builds either a share purchase or a short option
func randomTrade(rng *rand.Rand, today date.Date) trading.TradeCreate {
	ticker := tickers[rng.Intn(len(tickers))]
	tradeDate := today.AddDays(-rng.Intn(60))

	if rng.Intn(3) == 0 {
		return trading.TradeCreate{
			Ticker:       ticker,
			AssetType:    types.AssetStock,
			Action:       types.ActionBuy,
			TradeDate:    tradeDate,
			Quantity:     int64(rng.Intn(10)+1) * 10,
			PricePerUnit: decimal.NewFromInt(int64(rng.Intn(400) + 50)),
		}
	}

	optionType := types.OptionPut
	if rng.Intn(2) == 0 {
		optionType = types.OptionCall
	}
	exp := tradeDate.AddDays(30)
	return trading.TradeCreate{
		Ticker:         ticker,
		AssetType:      types.AssetOption,
		OptionType:     &optionType,
		Action:         types.ActionSTO,
		StrikePrice:    decimal.NewNullDecimal(decimal.NewFromInt(strikes[rng.Intn(len(strikes))])),
		ExpirationDate: &exp,
		TradeDate:      tradeDate,
		Quantity:       int64(rng.Intn(3) + 1),
		PricePerUnit:   decimal.New(int64(rng.Intn(500)+50), -2),
		Fees:           decimal.RequireFromString("0.65"),
	}
}

// createTradesHTTP submits random trades and sends opened option ids to optionIDs
func createTradesHTTP(workerID int, sc *simulationClient, optionIDs chan<- uint) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	today := date.Today()

	for i := 0; i < tradesPerWorker; i++ {
		req := randomTrade(rng, today)
		id, err := sc.createTrade(req)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Str("ticker", req.Ticker).
				Msg("Failed to create trade")
			continue
		}

		if req.AssetType == types.AssetOption {
			optionIDs <- id
		}
		log.Info().
			Int("worker_id", workerID).
			Uint("trade_id", id).
			Str("ticker", req.Ticker).
			Str("action", string(req.Action)).
			Int64("quantity", req.Quantity).
			Str("price", req.PricePerUnit.String()).
			Msg("Trade created")

		time.Sleep(time.Duration(rng.Intn(300)) * time.Millisecond)
	}
}

const simulationCSV = `Symbol,Action,Strike,Expiration,Trade Date,Contracts,Price,Fees,Expired,Notes
AMD,STO Put,140,1/17,1/2,2,2.15,1.30,yes,imported put
AMD,Stock Buy,,,1/3,100,$152.40,0,,shares
QQQ,Call Spread BTO,500-510,2/21,1/6,1,3.10,1.30,,debit spread
META,Roll,600,2/21,1/7,1,4.00,0.65,,unknown action
`

// main drives a running server: seeds sample data, records trades from
// concurrent workers, closes some of them, imports a CSV and prints a report
func main() {
	addr := flag.String("addr", defaultAddress, "base URL of the tracker API")
	flag.Parse()

	sc := newSimulationClient(*addr)
	start := time.Now()

	inserted, err := sc.loadSampleData()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to reach server")
	}
	log.Info().Bool("inserted", inserted).Msg("Sample data requested")

	optionIDs := make(chan uint, numWorkers*tradesPerWorker)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createTradesHTTP(workerID, sc, optionIDs)
		}(i)
	}
	wg.Wait()
	close(optionIDs)

	var opened []uint
	for id := range optionIDs {
		opened = append(opened, id)
	}
	log.Info().Int("options_opened", len(opened)).Msg("All trades created")

	// Buy back half of the new shorts, let the rest of the first few expire.
	closed := 0
	for i, id := range opened {
		req := trading.CloseTradeRequest{
			CloseDate:  date.Today(),
			ClosePrice: decimal.RequireFromString("0.25"),
			CloseFees:  decimal.RequireFromString("0.65"),
			ActionType: trading.CloseActionClose,
		}
		switch {
		case i%2 == 0:
		case i < 6:
			req.ActionType = trading.CloseActionExpired
		default:
			continue
		}

		result, err := sc.closeTrade(id, req)
		if err != nil {
			log.Error().Err(err).Uint("trade_id", id).Msg("Failed to close trade")
			continue
		}
		closed++
		log.Info().
			Uint("trade_id", id).
			Uint("closing_trade_id", result.ClosingTradeID).
			Str("action_type", req.ActionType).
			Msg("Trade closed")
	}

	imported, err := sc.importCSV(simulationCSV)
	if err != nil {
		log.Error().Err(err).Msg("CSV import failed")
		imported = &types.ImportResult{}
	}
	for _, e := range imported.Errors {
		log.Warn().Str("batch_id", imported.BatchID).Msg(e)
	}

	open, err := sc.openPositions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load open positions")
	}
	summary, err := sc.summary()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load P&L summary")
	}
	months, err := sc.premium("month")
	if err != nil {
		log.Error().Err(err).Msg("Failed to load premium")
	}

	duration := time.Since(start)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 OPTIONS TRACKER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Activity
------------------
Options Opened:   %d
Options Closed:   %d
CSV Imported:     %d
CSV Errors:       %d
Open Positions:   %d
Duration:         %v

💰 P&L
------------------
Realized:         %s
Unrealized:       %s (%s)
Total:            %s
Fees:             %s
Issues:           %d

📈 Net Premium by Month
--------------------
`, len(opened), closed, imported.Imported, imported.TotalErrors, len(open),
		duration.Round(time.Millisecond),
		usd(summary.RealizedPnL), usd(summary.UnrealizedPnL), summary.UnrealizedStatus,
		usd(summary.TotalPnL), usd(summary.TotalFees), len(summary.Issues))

	maxPremium := decimal.Zero
	for _, m := range months {
		if m.NetPremium.Abs().GreaterThan(maxPremium) {
			maxPremium = m.NetPremium.Abs()
		}
	}
	for _, m := range months {
		barLength := 0
		if maxPremium.IsPositive() {
			barLength = int(m.NetPremium.Abs().Div(maxPremium).Mul(decimal.NewFromInt(20)).IntPart())
		}
		fmt.Printf("%-8s: %-20s %12s (%d trades)\n", m.Period, strings.Repeat("█", barLength), usd(m.NetPremium), m.NumTrades)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	sc.printPerformanceStats()
}
