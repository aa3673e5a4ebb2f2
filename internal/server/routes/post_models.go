package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

type modelRequest struct {
	ModelID string `param:"id" validate:"required"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func bindModelRequest(c echo.Context) (*modelRequest, error) {
	data := new(modelRequest)
	if err := c.Bind(data); err != nil {
		return nil, err
	}
	if err := c.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// CreateSnapshotHandler builds the snapshot of a lifecycle model.
func CreateSnapshotHandler(c echo.Context) error {
	data, err := bindModelRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	pipeline := c.(*middleware.AppContext).App.Pipeline
	out, err := pipeline.Run(c.Request().Context(), export.Request{
		ModelID: data.ModelID,
		Version: data.Version,
		Commit:  data.Commit,
	})
	if err != nil {
		return exportError(c, err)
	}
	return c.JSON(http.StatusOK, out.Snapshot)
}

// SolveModelHandler builds the snapshot, runs the LCIA solver and resolves
// the process labels.
func SolveModelHandler(c echo.Context) error {
	type solveModelResponse struct {
		Snapshot *common.Snapshot     `json:"snapshot"`
		Result   *common.SolverResult `json:"result"`
		Labels   []string             `json:"labels"`
	}

	data, err := bindModelRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
	}

	pipeline := c.(*middleware.AppContext).App.Pipeline
	if pipeline.Solver == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "LCIA solver not configured"})
	}
	out, err := pipeline.Run(c.Request().Context(), export.Request{
		ModelID: data.ModelID,
		Version: data.Version,
		Commit:  data.Commit,
		Solve:   true,
	})
	if err != nil {
		return exportError(c, err)
	}

	return c.JSON(http.StatusOK, solveModelResponse{
		Snapshot: out.Snapshot,
		Result:   out.Result,
		Labels:   out.Labels,
	})
}
