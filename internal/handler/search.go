package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dharmasatrya/flightadvisor/internal/logging"
	"github.com/dharmasatrya/flightadvisor/internal/models"
)

// Runner executes a search from raw, unvalidated parameters.
type Runner interface {
	Run(ctx context.Context, raw map[string]any) (*models.PipelineResponse, error)
}

type SearchHandler struct {
	runner Runner
	logger *zap.Logger
}

func NewSearchHandler(runner Runner, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		runner: runner,
		logger: logging.Component(logger, "handler"),
	}
}

func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()

	raw := make(map[string]any)
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
			Code:    http.StatusBadRequest,
		})
	}

	resp, err := h.runner.Run(ctx, raw)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("search failed", zap.String("kind", body.Error), zap.Error(err))
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, resp)
}

func errorResponse(err error) (int, models.ErrorResponse) {
	var invalid *models.InvalidInputError
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, models.ErrorResponse{
			Error:   string(models.KindInvalidInput),
			Message: invalid.Reason,
			Field:   invalid.Field,
			Code:    http.StatusBadRequest,
		}
	}

	kind := models.KindOf(err)
	status := http.StatusInternalServerError
	message := "Failed to search flights: " + err.Error()
	switch {
	case kind == models.KindUpstreamAuth || kind == models.KindUpstreamRejected:
		status = http.StatusBadGateway
	case kind == models.KindUpstreamRateLimited || kind == models.KindUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		message = "search did not finish in time"
	case errors.Is(err, context.Canceled):
		// nginx convention for a client that went away
		status = 499
		message = "search cancelled"
	}

	return status, models.ErrorResponse{
		Error:   string(kind),
		Message: message,
		Code:    status,
	}
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
