package api

import (
	models "ChartSync/internal/domain/models"
	"ChartSync/internal/usecase"
	xhttp "ChartSync/pkg/http"
	xlogger "ChartSync/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SeriesEchoHandler exposes the resident series and viewport inputs over HTTP.
type SeriesEchoHandler struct {
	logger *xlogger.Logger
	engine *usecase.Engine
}

func NewSeriesEchoHandler(logger *xlogger.Logger, engine *usecase.Engine) *SeriesEchoHandler {
	return &SeriesEchoHandler{logger: logger, engine: engine}
}

func (h *SeriesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/series", h.Series)
	g.GET("/series/last", h.Last)
	g.POST("/series/key", h.SetKey)
	g.POST("/viewport", h.Viewport)
	e.GET("/healthz", h.Health)
}

// Series returns the sorted resident candle snapshot for the active key.
func (h *SeriesEchoHandler) Series(c echo.Context) error {
	snap := h.engine.Snapshot()
	return xhttp.ListResponse(c, snap, int64(len(snap)))
}

// Last returns the tail candle, or 404 on an empty series.
func (h *SeriesEchoHandler) Last(c echo.Context) error {
	snap := h.engine.Snapshot()
	if len(snap) == 0 {
		return xhttp.NotFoundResponse(c, "series is empty")
	}
	return xhttp.SuccessResponse(c, snap[len(snap)-1])
}

// SetKey replaces the active series key.
func (h *SeriesEchoHandler) SetKey(c echo.Context) error {
	req := &models.SetKeyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	g := models.Granularity(req.Granularity)
	h.engine.SetActiveKey(req.Instrument, g)
	return xhttp.SuccessResponse(c, h.engine.ActiveKey())
}

// Viewport feeds a scroll/zoom observation into the engine.
func (h *SeriesEchoHandler) Viewport(c echo.Context) error {
	req := &models.ViewportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	v := models.ViewportState{From: req.From, To: req.To, VisibleCount: req.VisibleCount}
	h.engine.OnViewportNearStart(v)
	if req.VisibleCount > 0 {
		h.engine.OnViewportZoom(req.VisibleCount)
	}
	return xhttp.SuccessResponse(c, h.engine.ActiveKey())
}

// Health reports liveness.
func (h *SeriesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
