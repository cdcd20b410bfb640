package positions

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/response"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TradeLister reads a snapshot of the ledger.
type TradeLister interface {
	ListTrades(ctx context.Context, filter trading.TradeFilter) ([]types.Trade, error)
}

// Service resolves open positions from a fresh ledger read on every call
type Service struct {
	trades TradeLister
}

func NewService(trades TradeLister) *Service {
	return &Service{trades: trades}
}

// OptionPositions returns the open option and spread positions, soonest expiration first
func (s *Service) OptionPositions(ctx context.Context) ([]types.OpenPosition, []types.Issue, error) {
	trades, err := s.trades.ListTrades(ctx, trading.TradeFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	positions, issues := OpenOptionPositions(trades)
	logIssues(log.With().Str("service", "positions").Logger(), issues)
	return positions, issues, nil
}

// StockPositions returns the stock holdings with weighted-average cost
func (s *Service) StockPositions(ctx context.Context) ([]types.StockPosition, []types.Issue, error) {
	trades, err := s.trades.ListTrades(ctx, trading.TradeFilter{AssetType: string(types.AssetStock)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	positions, issues := OpenStockPositions(trades)
	logIssues(log.With().Str("service", "positions").Logger(), issues)
	return positions, issues, nil
}

func logIssues(logger zerolog.Logger, issues []types.Issue) {
	for _, issue := range issues {
		logger.Warn().
			Str("kind", issue.Kind).
			Uint("trade_id", issue.TradeID).
			Str("ticker", issue.Ticker).
			Msg(issue.Message)
	}
}

// GinHandlers contains HTTP handlers for position endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// OptionPositionsHandler handles GET requests for open option and spread positions
func (h *GinHandlers) OptionPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, _, err := h.service.OptionPositions(c.Request.Context())
		if positions == nil && err == nil {
			positions = []types.OpenPosition{}
		}
		response.Handle(c, positions, err)
	}
}

// StockPositionsHandler handles GET requests for open stock positions
func (h *GinHandlers) StockPositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		positions, _, err := h.service.StockPositions(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		rounded := make([]types.StockPosition, len(positions))
		for i, p := range positions {
			rounded[i] = p.Rounded()
		}
		response.Success(c, rounded)
	}
}
