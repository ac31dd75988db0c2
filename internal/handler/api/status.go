package api

import (
	"OptPull/internal/adaptive"
	"OptPull/internal/domain/models"
	drepo "OptPull/internal/domain/repository"
	"OptPull/internal/scheduler"
	xhttp "OptPull/pkg/http"
	xlogger "OptPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatusEchoHandler exposes the scheduler and controller state over HTTP.
type StatusEchoHandler struct {
	logger    *xlogger.Logger
	sched     *scheduler.Scheduler
	sev       *adaptive.Classifier
	detail    *adaptive.DetailController
	scale     *adaptive.ScaleController // nil when disabled
	guard     *adaptive.Guard
	persister drepo.Persister
}

func NewStatusEchoHandler(
	logger *xlogger.Logger,
	sched *scheduler.Scheduler,
	sev *adaptive.Classifier,
	detail *adaptive.DetailController,
	scale *adaptive.ScaleController,
	guard *adaptive.Guard,
	persister drepo.Persister,
) *StatusEchoHandler {
	return &StatusEchoHandler{
		logger:    logger,
		sched:     sched,
		sev:       sev,
		detail:    detail,
		scale:     scale,
		guard:     guard,
		persister: persister,
	}
}

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/trend", h.Trend)
	g.GET("/outcomes", h.Outcomes)
	g.GET("/health", h.Health)
}

type statusResponse struct {
	Cycle       scheduler.CycleSummary       `json:"cycle"`
	DetailMode  int                          `json:"detail_mode"`
	Adaptive    models.AdaptiveState         `json:"adaptive"`
	StrikeScale *models.StrikeScaleState     `json:"strike_scale,omitempty"`
	Cardinality models.CardinalityGuardState `json:"cardinality"`
	Severity    map[models.SeverityLevel]int `json:"severity_active"`
}

// Status reports the last cycle summary and all controller states.
func (h *StatusEchoHandler) Status(c echo.Context) error {
	resp := statusResponse{
		Cycle:       h.sched.Summary(),
		DetailMode:  h.detail.Mode(),
		Adaptive:    h.detail.State(),
		Cardinality: h.guard.State(),
		Severity:    h.sev.ActiveCounts(),
	}
	if h.scale != nil {
		st := h.scale.State()
		resp.StrikeScale = &st
	}
	return xhttp.SuccessResponse(c, resp)
}

// Trend returns the buffered severity snapshots, oldest first.
func (h *StatusEchoHandler) Trend(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.sev.TrendSnapshots())
}

type outcomesRequest struct {
	Limit int `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

// Outcomes returns the last cycle's unit outcomes.
func (h *StatusEchoHandler) Outcomes(c echo.Context) error {
	req := &outcomesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	outcomes := h.sched.Outcomes()
	if len(outcomes) > req.Limit {
		outcomes = outcomes[:req.Limit]
	}
	return xhttp.SuccessResponse(c, outcomes)
}

// Health pings the storage backend.
func (h *StatusEchoHandler) Health(c echo.Context) error {
	if h.persister != nil {
		if err := h.persister.Health(c.Request().Context()); err != nil {
			h.logger.Error("storage health check failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
