package trading

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles trade entry and the ledger of record
type Service struct {
	db *Database
}

// NewService creates a new trading service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// ListTrades returns every trade matching the filter, newest first.
// Derived views (positions, P&L, premium) read the ledger through here.
func (s *Service) ListTrades(ctx context.Context, filter TradeFilter) ([]types.Trade, error) {
	trades, err := s.db.ListTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// GetTrade retrieves a trade by its ID
func (s *Service) GetTrade(ctx context.Context, id uint) (*types.Trade, error) {
	return s.db.GetTrade(ctx, id)
}

// CreateTrade validates the payload and records a new trade
// Nothing is written when validation fails; every field problem is reported at once
func (s *Service) CreateTrade(ctx context.Context, req TradeCreate) (uint, error) {
	trade, err := s.prepareTrade(ctx, req)
	if err != nil {
		return 0, err
	}

	if err := s.db.InsertTrade(ctx, trade); err != nil {
		return 0, fmt.Errorf("failed to insert trade: %w", err)
	}

	log.Info().
		Uint("trade_id", trade.ID).
		Str("ticker", trade.Ticker).
		Str("action", string(trade.Action)).
		Int64("quantity", trade.Quantity).
		Msg("trade recorded")

	return trade.ID, nil
}

// CreateTradeWithOutcome records an opening trade together with a linked
// Expired or Assigned outcome in one transaction. Either both rows are
// written or neither is.
func (s *Service) CreateTradeWithOutcome(ctx context.Context, req TradeCreate, outcome types.Action, batchID string) ([]uint, error) {
	trade, err := s.prepareTrade(ctx, req)
	if err != nil {
		return nil, err
	}
	if batchID != "" {
		trade.ImportBatchID = &batchID
	}

	chain := []*types.Trade{trade}
	if outcome != "" {
		if outcome != types.ActionExpired && outcome != types.ActionAssigned {
			return nil, types.NewValidationError("outcome", fmt.Sprintf("%s is not an expiry outcome", outcome))
		}
		if !trade.AssetType.HasContracts() || !trade.Action.IsOpening() {
			return nil, types.NewValidationError("action", "only opening option or spread trades can expire or be assigned")
		}
		closed := types.StatusClosed
		trade.Status = &closed
		chain = append(chain, outcomeTrade(trade, outcome, batchID))
	}

	if err := s.db.InsertTradeChain(ctx, chain); err != nil {
		return nil, fmt.Errorf("failed to insert trade: %w", err)
	}

	ids := make([]uint, 0, len(chain))
	for _, t := range chain {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func outcomeTrade(opener *types.Trade, outcome types.Action, batchID string) *types.Trade {
	closed := types.StatusClosed
	t := &types.Trade{
		Ticker:         opener.Ticker,
		AssetType:      opener.AssetType,
		OptionType:     opener.OptionType,
		Action:         outcome,
		StrikePrice:    opener.StrikePrice,
		StrikePrice2:   opener.StrikePrice2,
		ExpirationDate: opener.ExpirationDate,
		TradeDate:      opener.TradeDate,
		Quantity:       opener.Quantity,
		Notes:          string(outcome) + " (imported)",
		Status:         &closed,
	}
	if opener.ExpirationDate != nil && !opener.ExpirationDate.IsZero() {
		t.TradeDate = *opener.ExpirationDate
	}
	if batchID != "" {
		t.ImportBatchID = &batchID
	}
	return t
}

// prepareTrade normalizes and validates a create request and builds the row to insert.
func (s *Service) prepareTrade(ctx context.Context, req TradeCreate) (*types.Trade, error) {
	req.normalize()
	ve := req.validateShape()

	if req.LinkedTradeID != nil && len(ve.Fields) == 0 {
		linked, err := s.db.GetTrade(ctx, *req.LinkedTradeID)
		switch {
		case errors.Is(err, types.ErrTradeNotFound):
			ve.Add("linked_trade_id", "trade %d does not exist", *req.LinkedTradeID)
		case err != nil:
			return nil, fmt.Errorf("failed to load linked trade: %w", err)
		case !linked.Action.IsOpening():
			ve.Add("linked_trade_id", "trade %d is not an opening trade", linked.ID)
		}
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	trade := &types.Trade{
		Ticker:         req.Ticker,
		AssetType:      req.AssetType,
		OptionType:     req.OptionType,
		Action:         req.Action,
		StrikePrice:    req.StrikePrice,
		StrikePrice2:   req.StrikePrice2,
		ExpirationDate: req.ExpirationDate,
		TradeDate:      req.TradeDate,
		Quantity:       req.Quantity,
		PricePerUnit:   req.PricePerUnit,
		Fees:           req.Fees,
		Notes:          req.Notes,
		LinkedTradeID:  req.LinkedTradeID,
		Status:         req.Status,
	}
	if trade.ExpirationDate != nil && trade.ExpirationDate.IsZero() {
		trade.ExpirationDate = nil
	}
	if trade.Status == nil {
		trade.Status = defaultStatus(trade)
	}
	return trade, nil
}

// defaultStatus gives option and spread trades a lifecycle; stock trades have none.
func defaultStatus(t *types.Trade) *types.TradeStatus {
	if !t.AssetType.HasContracts() {
		return nil
	}
	status := types.StatusClosed
	if t.Action.IsOpening() {
		status = types.StatusOpen
	}
	return &status
}

// UpdateTrade changes the notes and/or status of a trade
func (s *Service) UpdateTrade(ctx context.Context, id uint, req TradeUpdate) error {
	if err := req.validate().Err(); err != nil {
		return err
	}

	trade, err := s.db.GetTrade(ctx, id)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Status != nil {
		if *req.Status == types.StatusOpen && !(trade.AssetType.HasContracts() && trade.Action.IsOpening()) {
			return types.NewValidationError("status", "Open is only valid for opening option or spread trades")
		}
		fields["status"] = *req.Status
	}

	if err := s.db.UpdateTrade(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update trade %d: %w", id, err)
	}
	return nil
}

// DeleteTrade removes a trade. Trades that were linked to it are kept and unlinked.
func (s *Service) DeleteTrade(ctx context.Context, id uint) error {
	if err := s.db.DeleteTrade(ctx, id); err != nil {
		if errors.Is(err, types.ErrTradeNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete trade %d: %w", id, err)
	}
	log.Info().Uint("trade_id", id).Msg("trade deleted")
	return nil
}

// RemainingQuantity is the opening quantity minus every linked closing quantity, floored at zero.
func (s *Service) RemainingQuantity(ctx context.Context, opener *types.Trade) (int64, error) {
	linked, err := s.db.ListLinkedTrades(ctx, opener.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load closing trades: %w", err)
	}
	remaining := opener.Quantity
	for _, t := range linked {
		if t.Action.IsClosing() {
			remaining -= t.Quantity
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CloseTrade records a closing leg for an open option or spread trade
// Close buys back an STO or sells out a BTO at close_price; Expired and
// Assigned settle at zero. The opening trade is never modified except for
// its status once nothing is left open.
func (s *Service) CloseTrade(ctx context.Context, id uint, req CloseTradeRequest) (*CloseResult, error) {
	logger := log.With().
		Uint("trade_id", id).
		Str("service", "trading").
		Str("action_type", req.ActionType).
		Logger()

	if err := req.validate().Err(); err != nil {
		return nil, err
	}

	opener, err := s.db.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if !opener.AssetType.HasContracts() || !opener.Action.IsOpening() {
		return nil, types.NewValidationError("trade_id",
			fmt.Sprintf("trade %d is not an opening option or spread trade", id))
	}

	remaining, err := s.RemainingQuantity(ctx, opener)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		return nil, types.NewValidationError("trade_id", fmt.Sprintf("trade %d is already fully closed", id))
	}

	qty := remaining
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty > remaining {
		return nil, types.NewValidationError("quantity",
			fmt.Sprintf("cannot close %d, only %d open", qty, remaining))
	}

	closed := types.StatusClosed
	closing := &types.Trade{
		Ticker:         opener.Ticker,
		AssetType:      opener.AssetType,
		OptionType:     opener.OptionType,
		StrikePrice:    opener.StrikePrice,
		StrikePrice2:   opener.StrikePrice2,
		ExpirationDate: opener.ExpirationDate,
		TradeDate:      req.CloseDate,
		Quantity:       qty,
		Fees:           req.CloseFees,
		LinkedTradeID:  &opener.ID,
		Status:         &closed,
	}
	switch req.ActionType {
	case CloseActionClose:
		closing.Action = types.ActionSTC
		if opener.Action == types.ActionSTO {
			closing.Action = types.ActionBTC
		}
		closing.PricePerUnit = req.ClosePrice
		closing.Notes = "Closed position"
	case CloseActionExpired:
		closing.Action = types.ActionExpired
		closing.Notes = "Expired"
	case CloseActionAssigned:
		closing.Action = types.ActionAssigned
		closing.Notes = "Assigned"
	}

	left, err := s.db.InsertClosingTrade(ctx, closing, opener.Quantity)
	if errors.Is(err, errOverClose) {
		logger.Warn().Int64("quantity", qty).Int64("remaining", left).Msg("close raced another close")
		return nil, types.NewValidationError("quantity",
			fmt.Sprintf("cannot close %d, only %d open", qty, left))
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to record closing trade")
		return nil, fmt.Errorf("failed to record closing trade: %w", err)
	}

	logger.Info().
		Uint("closing_trade_id", closing.ID).
		Int64("quantity", qty).
		Int64("remaining", left).
		Msg("trade closed")

	return &CloseResult{ClosingTradeID: closing.ID, Remaining: left}, nil
}

// Tickers returns the distinct tickers present in the ledger
func (s *Service) Tickers(ctx context.Context) ([]string, error) {
	tickers, err := s.db.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	if tickers == nil {
		tickers = []string{}
	}
	return tickers, nil
}

// Health reports whether the ledger database is reachable
func (s *Service) Health(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GinHandlers contains HTTP handlers for trade endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for trade endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ListTradesHandler handles GET requests listing trades
// Query parameters: ticker, asset_type, action ("All" or empty disables a filter)
func (h *GinHandlers) ListTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter TradeFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trades, err := h.service.ListTrades(c.Request.Context(), filter)
		if trades == nil && err == nil {
			trades = []types.Trade{}
		}
		response.Handle(c, trades, err)
	}
}

// GetTradeHandler handles GET requests for a single trade
// URL parameter: id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tradeID(c)
		if !ok {
			return
		}

		trade, err := h.service.GetTrade(c.Request.Context(), id)
		response.Handle(c, trade, err)
	}
}

// CreateTradeHandler handles POST requests to record a trade
func (h *GinHandlers) CreateTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TradeCreate
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		id, err := h.service.CreateTrade(c.Request.Context(), req)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"id": id, "message": "Trade created"})
	}
}

// UpdateTradeHandler handles PATCH requests changing notes or status
// URL parameter: id
func (h *GinHandlers) UpdateTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tradeID(c)
		if !ok {
			return
		}

		var req TradeUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		err := h.service.UpdateTrade(c.Request.Context(), id, req)
		response.Handle(c, gin.H{"id": id, "message": "Trade updated"}, err)
	}
}

// DeleteTradeHandler handles DELETE requests
// URL parameter: id
func (h *GinHandlers) DeleteTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tradeID(c)
		if !ok {
			return
		}

		err := h.service.DeleteTrade(c.Request.Context(), id)
		response.Handle(c, gin.H{"id": id, "message": "Trade deleted"}, err)
	}
}

// CloseTradeHandler handles POST requests closing an open trade
// URL parameter: id
func (h *GinHandlers) CloseTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tradeID(c)
		if !ok {
			return
		}

		var req CloseTradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.CloseTrade(c.Request.Context(), id, req)
		response.Handle(c, result, err)
	}
}

// TickersHandler handles GET requests for the distinct ticker list
func (h *GinHandlers) TickersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tickers, err := h.service.Tickers(c.Request.Context())
		response.Handle(c, tickers, err)
	}
}

// SampleDataHandler handles POST requests seeding demo trades into an empty ledger
func (h *GinHandlers) SampleDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inserted, err := h.service.LoadSampleData(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		message := "Sample data loaded"
		if !inserted {
			message = "Ledger already has trades, sample data skipped"
		}
		response.Success(c, gin.H{"inserted": inserted, "message": message})
	}
}

// HealthHandler handles GET health checks
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.Health(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "Database unavailable")
			return
		}
		response.Success(c, gin.H{"status": "healthy"})
	}
}

func tradeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Trade ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}
