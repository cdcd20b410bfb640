package pnl

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/response"
	"github.com/rs/zerolog/log"
)

// TradeLister reads a snapshot of the ledger.
type TradeLister interface {
	ListTrades(ctx context.Context, filter trading.TradeFilter) ([]types.Trade, error)
}

// Service computes the dashboard P&L summary
type Service struct {
	trades TradeLister
	feed   PriceFeed
}

// NewService creates a P&L service. feed may be nil when no market prices are available.
func NewService(trades TradeLister, feed PriceFeed) *Service {
	return &Service{trades: trades, feed: feed}
}

// Summary reads the full ledger and summarizes it
func (s *Service) Summary(ctx context.Context) (types.PnLSummary, error) {
	logger := log.With().Str("service", "pnl").Logger()

	trades, err := s.trades.ListTrades(ctx, trading.TradeFilter{})
	if err != nil {
		return types.PnLSummary{}, fmt.Errorf("failed to read ledger: %w", err)
	}

	summary := Summarize(ctx, trades, s.feed)
	for _, issue := range summary.Issues {
		logger.Warn().
			Str("kind", issue.Kind).
			Uint("trade_id", issue.TradeID).
			Str("ticker", issue.Ticker).
			Msg(issue.Message)
	}

	logger.Debug().
		Int("trades", len(trades)).
		Str("realized", summary.RealizedPnL.String()).
		Str("unrealized_status", summary.UnrealizedStatus).
		Msg("computed P&L summary")

	return summary, nil
}

// GinHandlers contains HTTP handlers for the dashboard summary
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SummaryHandler handles GET requests for the P&L summary, rounded to cents
func (h *GinHandlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.Summary(c.Request.Context())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, summary.Rounded())
	}
}
