package api

import (
	"errors"
	"net/http"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/service"
	pkgcache "ExFuse/pkg/cache"
	xhttp "ExFuse/pkg/http"
	xlogger "ExFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const analyticsCacheTTL = 15 * time.Second

// MarketHandler serves the aggregation endpoints.
type MarketHandler struct {
	logger *xlogger.Logger
	agg    service.Aggregator
	cache  pkgcache.Service
}

func NewMarketHandler(logger *xlogger.Logger, agg service.Aggregator, cache pkgcache.Service) *MarketHandler {
	return &MarketHandler{logger: logger, agg: agg, cache: cache}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/ticker", h.Ticker)
	g.GET("/orderbook", h.Orderbook)
	g.GET("/klines", h.Klines)
	g.GET("/divergences", h.Divergences)
	g.GET("/arbitrage", h.Arbitrage)
	g.GET("/dominance", h.Dominance)
	g.GET("/analytics", h.Analytics)
}

// aggErrorResponse maps a fatal aggregation failure to 503 with a message
// naming the symbol and operation.
func aggErrorResponse(c echo.Context, logger *xlogger.Logger, op string, err error) error {
	logger.Error(op+" failed", xlogger.Error(err))

	var aggErr *models.AggregationError
	if errors.As(err, &aggErr) {
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_AGGREGATION", "", aggErr.Error(), http.StatusServiceUnavailable).WithError(aggErr.Err))
	}
	return xhttp.AppErrorResponse(c, err)
}

func (h *MarketHandler) Ticker(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.GetAggregatedTicker(c.Request().Context(), req.Symbol, req.Category)
	if err != nil {
		return aggErrorResponse(c, h.logger, "ticker", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Orderbook(c echo.Context) error {
	req := &models.OrderbookRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.GetCompositeOrderbook(c.Request().Context(), req.Symbol, req.Category, req.Limit)
	if err != nil {
		return aggErrorResponse(c, h.logger, "orderbook", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Klines(c echo.Context) error {
	req := &models.KlinesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.GetSynchronizedKlines(c.Request().Context(), req.Symbol, req.Interval, req.Limit, req.Category)
	if err != nil {
		return aggErrorResponse(c, h.logger, "klines", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Divergences(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.DetectDivergences(c.Request().Context(), req.Symbol, req.Category)
	if err != nil {
		return aggErrorResponse(c, h.logger, "divergences", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Arbitrage(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.IdentifyArbitrage(c.Request().Context(), req.Symbol, req.Category)
	if err != nil {
		return aggErrorResponse(c, h.logger, "arbitrage", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketHandler) Dominance(c echo.Context) error {
	req := &models.DominanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.agg.GetExchangeDominance(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		return aggErrorResponse(c, h.logger, "dominance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Analytics caches the full bundle briefly: it fans out to everything and
// dashboards poll it hard.
func (h *MarketHandler) Analytics(c echo.Context) error {
	req := &models.AnalyticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	key := pkgcache.GenerateKeyWithParams("analytics", req.Symbol, req.Timeframe)
	if h.cache != nil {
		var cached models.MultiExchangeAnalytics
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	res, err := h.agg.GetMultiExchangeAnalytics(ctx, req.Symbol, req.Timeframe)
	if err != nil {
		return aggErrorResponse(c, h.logger, "analytics", err)
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, res, analyticsCacheTTL); err != nil {
			h.logger.Warn("analytics cache set failed", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, res)
}
