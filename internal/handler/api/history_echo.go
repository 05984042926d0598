package api

import (
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	xhttp "ExFuse/pkg/http"
	xlogger "ExFuse/pkg/logger"
	"ExFuse/pkg/util"

	"github.com/labstack/echo/v4"
)

// HistoryHandler reads monitor-recorded signals back from storage.
type HistoryHandler struct {
	logger *xlogger.Logger
	store  repository.SignalStore
}

func NewHistoryHandler(logger *xlogger.Logger, store repository.SignalStore) *HistoryHandler {
	return &HistoryHandler{logger: logger, store: store}
}

func (h *HistoryHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/signals/history", h.History)
}

func (h *HistoryHandler) History(c echo.Context) error {
	req := &models.SignalHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	res, err := h.store.QuerySignals(c.Request().Context(), req.Symbol, req.Kind, from, to, req.Limit)
	if err != nil {
		h.logger.Error("signal history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}
