package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/jobs"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/queue"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CreateExportHandler records an export job and queues it for the worker.
func CreateExportHandler(c echo.Context) error {
	type createExportBody struct {
		ModelID string `json:"model_id" validate:"required"`
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Solve   *bool  `json:"solve"`
	}

	type createExportResponse struct {
		Message string    `json:"message"`
		Job     *jobs.Job `json:"job,omitempty"`
	}

	data := new(createExportBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createExportResponse{Message: "Invalid request body"})
	}
	solve := data.Solve == nil || *data.Solve

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	job, err := app.Jobs.Create(ctx, jobs.Job{
		ModelID: data.ModelID,
		Version: data.Version,
		Commit:  data.Commit,
		Solve:   solve,
	})
	if err != nil {
		logger.Error("[Routes] Failed to create export job", "model_id", data.ModelID, "err", err)
		return c.JSON(http.StatusInternalServerError, createExportResponse{Message: "Internal server error"})
	}

	msg, err := json.Marshal(queue.ExportJobMsg{
		JobID:   job.ID,
		ModelID: job.ModelID,
		Version: job.Version,
		Commit:  job.Commit,
		Solve:   job.Solve,
	})
	if err == nil {
		err = queue.PublishFIFO(ctx, app.Queue, queue.ExportQueue, msg)
	}
	if err != nil {
		logger.Error("[Routes] Failed to queue export job", "job_id", job.ID, "err", err)
		if markErr := app.Jobs.MarkFailed(ctx, job.ID, "failed to queue job"); markErr != nil {
			logger.Warn("[Routes] Failed to mark export job as failed", "job_id", job.ID, "err", markErr)
		}
		return c.JSON(http.StatusInternalServerError, createExportResponse{Message: "Internal server error"})
	}

	logger.Info("[Routes] Export job queued", "job_id", job.ID, "model_id", job.ModelID)
	return c.JSON(http.StatusAccepted, createExportResponse{
		Message: "Export job queued",
		Job:     &job,
	})
}

// GetExportHandler returns the job status and, once done, presigned links to
// its artifacts.
func GetExportHandler(c echo.Context) error {
	type getExportParams struct {
		JobID string `param:"id" validate:"required"`
	}

	type getExportResponse struct {
		Job         jobs.Job `json:"job"`
		SnapshotURL string   `json:"snapshot_url,omitempty"`
		ResultURL   string   `json:"result_url,omitempty"`
	}

	params := new(getExportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request params"})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	job, err := app.Jobs.Get(ctx, params.JobID)
	if errors.Is(err, jobs.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Export job not found"})
	}
	if err != nil {
		logger.Error("[Routes] Failed to get export job", "job_id", params.JobID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	res := getExportResponse{Job: job}
	if job.Status == jobs.StatusDone {
		if job.SnapshotKey != nil {
			if res.SnapshotURL, err = app.Artifacts.DownloadLink(ctx, *job.SnapshotKey); err != nil {
				logger.Error("[Routes] Failed to sign snapshot link", "job_id", job.ID, "err", err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
		}
		if job.ResultKey != nil {
			if res.ResultURL, err = app.Artifacts.DownloadLink(ctx, *job.ResultKey); err != nil {
				logger.Error("[Routes] Failed to sign result link", "job_id", job.ID, "err", err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
		}
	}
	return c.JSON(http.StatusOK, res)
}
