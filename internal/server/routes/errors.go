package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/snapshot"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/solver"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error       string `json:"error"`
	ProcessUUID string `json:"process_uuid,omitempty"`
	FlowUUID    string `json:"flow_uuid,omitempty"`
}

// exportError maps export failures to responses:
// integrity violations 422, upstream failures 502.
func exportError(c echo.Context, err error) error {
	var (
		invariant    *snapshot.InvariantError
		inconsistent *report.InconsistentUnitsError
		loadErr      *snapshot.LoadError
		solverErr    *solver.RequestError
	)
	switch {
	case errors.As(err, &invariant):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:       err.Error(),
			ProcessUUID: invariant.ProcessUUID,
			FlowUUID:    invariant.FlowUUID,
		})
	case errors.As(err, &inconsistent):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:       err.Error(),
			ProcessUUID: inconsistent.ProcessUUID,
		})
	case errors.As(err, &loadErr), errors.As(err, &solverErr):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "Export timed out"})
	}
	logger.Error("[Routes] Export failed", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}
