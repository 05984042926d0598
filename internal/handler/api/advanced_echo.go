package api

import (
	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/service"
	xhttp "ExFuse/pkg/http"
	xlogger "ExFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdvancedHandler serves the advanced detector endpoints.
type AdvancedHandler struct {
	logger *xlogger.Logger
	svc    service.AdvancedAnalytics
}

func NewAdvancedHandler(logger *xlogger.Logger, svc service.AdvancedAnalytics) *AdvancedHandler {
	return &AdvancedHandler{logger: logger, svc: svc}
}

func (h *AdvancedHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/cascade", h.Cascade)

	adv := g.Group("/advanced")
	adv.GET("/divergences", h.Divergences)
	adv.GET("/arbitrage", h.Arbitrage)
	adv.GET("/dominance", h.Dominance)
	adv.GET("/structure", h.Structure)
}

func (h *AdvancedHandler) Cascade(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.PredictLiquidationCascade(c.Request().Context(), req.Symbol)
	if err != nil {
		return aggErrorResponse(c, h.logger, "cascade", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdvancedHandler) Divergences(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.DetectAdvancedDivergences(c.Request().Context(), req.Symbol)
	if err != nil {
		return aggErrorResponse(c, h.logger, "advanced divergences", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdvancedHandler) Arbitrage(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.AnalyzeEnhancedArbitrage(c.Request().Context(), req.Symbol)
	if err != nil {
		return aggErrorResponse(c, h.logger, "enhanced arbitrage", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdvancedHandler) Dominance(c echo.Context) error {
	req := &models.DominanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.AnalyzeExtendedDominance(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		return aggErrorResponse(c, h.logger, "extended dominance", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdvancedHandler) Structure(c echo.Context) error {
	req := &models.AnalyticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.AnalyzeCrossExchangeMarketStructure(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		return aggErrorResponse(c, h.logger, "market structure", err)
	}
	return xhttp.SuccessResponse(c, res)
}
