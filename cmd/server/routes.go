package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/ksred/options-tracker/internal/config"
	"github.com/ksred/options-tracker/internal/csvimport"
	"github.com/ksred/options-tracker/internal/pnl"
	"github.com/ksred/options-tracker/internal/positions"
	"github.com/ksred/options-tracker/internal/premium"
	"github.com/ksred/options-tracker/internal/trading"
	"github.com/ksred/options-tracker/pkg/middleware"
)

// handlers groups every HTTP handler set the API serves
type handlers struct {
	trading   *trading.GinHandlers
	positions *positions.GinHandlers
	pnl       *pnl.GinHandlers
	premium   *premium.GinHandlers
	csvimport *csvimport.GinHandlers
}

// newHandler wires services over db and returns the CORS-wrapped router
func newHandler(cfg config.Config, db *gorm.DB) (http.Handler, error) {
	var feed pnl.PriceFeed
	marks, err := cfg.Pricing.Marks()
	if err != nil {
		return nil, err
	}
	if len(marks) > 0 {
		feed = pnl.StaticPrices{Stocks: marks}
	}

	tradingService := trading.NewService(db)
	importService := csvimport.NewService(tradingService, csvimport.Config{
		PreviewRows:       cfg.Import.PreviewRows,
		MaxReportedErrors: cfg.Import.MaxReportedErrors,
		DefaultYear:       cfg.Import.DefaultYear,
	})

	h := handlers{
		trading:   trading.NewGinHandlers(tradingService),
		positions: positions.NewGinHandlers(positions.NewService(tradingService)),
		pnl:       pnl.NewGinHandlers(pnl.NewService(tradingService, feed)),
		premium:   premium.NewGinHandlers(premium.NewService(tradingService)),
		csvimport: csvimport.NewGinHandlers(importService),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	setupRoutes(router, h, cfg.RateLimit)

	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})(router), nil
}

// setupRoutes configures all API endpoints under /api/v1
// Writes and imports are rate limited per client; reads are not
func setupRoutes(router *gin.Engine, h handlers, limits config.RateLimit) {
	writeLimit := middleware.NewRateLimiter(limits.WritePerMinute).Handler()
	importLimit := middleware.NewRateLimiter(limits.ImportPerMinute).Handler()

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.trading.HealthHandler())
		v1.GET("/tickers", h.trading.TickersHandler())

		trades := v1.Group("/trades")
		{
			trades.GET("", h.trading.ListTradesHandler())
			trades.GET("/:id", h.trading.GetTradeHandler())
			trades.POST("", writeLimit, h.trading.CreateTradeHandler())
			trades.PATCH("/:id", writeLimit, h.trading.UpdateTradeHandler())
			trades.DELETE("/:id", writeLimit, h.trading.DeleteTradeHandler())
			trades.POST("/:id/close", writeLimit, h.trading.CloseTradeHandler())
		}

		positionRoutes := v1.Group("/positions")
		{
			positionRoutes.GET("/options", h.positions.OptionPositionsHandler())
			positionRoutes.GET("/stocks", h.positions.StockPositionsHandler())
		}

		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/summary", h.pnl.SummaryHandler())
			dashboard.GET("/premium/:period", h.premium.ByPeriodHandler())
		}

		imports := v1.Group("/import")
		imports.Use(importLimit)
		{
			imports.POST("/preview", h.csvimport.PreviewHandler())
			imports.POST("/process", h.csvimport.ProcessHandler())
		}

		v1.POST("/sample-data", writeLimit, h.trading.SampleDataHandler())
	}
}
