package premium

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/internal/types"
	"github.com/ksred/options-tracker/pkg/date"
	"github.com/ksred/options-tracker/pkg/response"
	"github.com/rs/zerolog/log"
)

// TradeLister reads a snapshot of the ledger.
type TradeLister interface {
	ListTrades(ctx context.Context, filter trading.TradeFilter) ([]types.Trade, error)
}

type Service struct {
	trades TradeLister
}

func NewService(trades TradeLister) *Service {
	return &Service{trades: trades}
}

// ByPeriod aggregates net premium for the named period ("week", "month" or "year")
func (s *Service) ByPeriod(ctx context.Context, period string, asset string) (types.PremiumReport, error) {
	p, err := date.ParsePeriod(period)
	if err != nil {
		return types.PremiumReport{}, types.NewValidationError("period", "must be one of: week, month, year")
	}

	assetType := types.AssetType(asset)
	if asset == "" || asset == "All" {
		assetType = ""
	} else if !assetType.Valid() {
		return types.PremiumReport{}, types.NewValidationError("asset_type", "must be one of: Option, Stock, Spread")
	}

	trades, err := s.trades.ListTrades(ctx, trading.TradeFilter{})
	if err != nil {
		return types.PremiumReport{}, fmt.Errorf("failed to read ledger: %w", err)
	}

	report := Aggregate(trades, p, assetType)
	for _, issue := range report.Issues {
		log.Warn().
			Str("service", "premium").
			Str("kind", issue.Kind).
			Uint("trade_id", issue.TradeID).
			Msg(issue.Message)
	}
	return report, nil
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ByPeriodHandler handles GET requests for premium buckets, newest first
// URL parameter: period; query parameter: asset_type
func (h *GinHandlers) ByPeriodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.service.ByPeriod(c.Request.Context(), c.Param("period"), c.Query("asset_type"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		periods := make([]types.PremiumPeriod, len(report.Periods))
		for i, p := range report.Periods {
			periods[i] = p.Rounded()
		}
		response.Success(c, periods)
	}
}
