package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/jobs"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/storage"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/util"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/exportlock"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/metrics"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/snapshot"
)

// storeTries bounds the attempts of one upload or job status write.
const storeTries = 3

// ExportJobMsg is the body of an export_queue message.
type ExportJobMsg struct {
	JobID   string `json:"job_id"`
	ModelID string `json:"model_id"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Solve   bool   `json:"solve"`
}

// ExportEvent is published on the events exchange when a job settles.
type ExportEvent struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Locker interface {
	WithLease(ctx context.Context, key string, opts exportlock.Options, fn func(ctx context.Context) error) error
}

type Worker struct {
	Pipeline  *export.Pipeline
	Jobs      jobs.Store
	Artifacts storage.ArtifactStore
	// Locker serializes exports of the same model version. Optional.
	Locker Locker
	// Events receives job status events. Optional.
	Events Publisher
	// Holder identifies this worker in lease rows.
	Holder string
}

// ProcessExportMessage runs one export job end to end. Errors that a retry
// cannot fix are returned as *PermanentError. A failed job is only settled as
// failed when the error is permanent or final is set, i.e. the delivery will
// go to the dead-letter queue. Otherwise it is marked retrying.
func (w *Worker) ProcessExportMessage(ctx context.Context, body []byte, final bool) (err error) {
	var data ExportJobMsg
	if err := json.Unmarshal(body, &data); err != nil {
		return &PermanentError{Err: fmt.Errorf("invalid export message: %w", err)}
	}
	if data.JobID == "" || data.ModelID == "" {
		return &PermanentError{Err: errors.New("export message without job_id or model_id")}
	}

	defer func() {
		var permanent *PermanentError
		status := metrics.StatusOK
		switch {
		case err == nil:
		case final || errors.As(err, &permanent):
			status = metrics.StatusFailed
			w.settle(data.JobID, err)
		default:
			status = metrics.StatusRetrying
			w.retrying(data.JobID, err)
		}
		metrics.ExportJobsTotal.WithLabelValues(status).Inc()
	}()

	if err := util.RetryErrWithContext(ctx, storeTries, func(ctx context.Context) error {
		return w.Jobs.MarkRunning(ctx, data.JobID)
	}); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			return &PermanentError{Err: err}
		}
		return err
	}

	run := func(ctx context.Context) error {
		return w.runExport(ctx, data)
	}
	if w.Locker != nil {
		err = w.Locker.WithLease(ctx, exportlock.ModelKey(data.ModelID, data.Version), exportlock.Options{
			Wait:       true,
			WaitJitter: 250 * time.Millisecond,
			Holder:     w.Holder,
		}, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

func (w *Worker) runExport(ctx context.Context, data ExportJobMsg) error {
	start := time.Now()
	out, err := w.Pipeline.Run(ctx, export.Request{
		ModelID: data.ModelID,
		Version: data.Version,
		Commit:  data.Commit,
		Solve:   data.Solve,
	})
	if err != nil {
		return err
	}

	artifacts, err := out.Artifacts()
	if err != nil {
		return err
	}
	keys := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		key := storage.ArtifactKey(data.JobID, a.Name)
		err := util.RetryErrWithContext(ctx, storeTries, func(ctx context.Context) error {
			return w.Artifacts.Put(ctx, key, a.ContentType, a.Body)
		})
		if err != nil {
			w.discardArtifacts(data.JobID)
			return err
		}
		keys[a.Name] = key
	}

	var resultKey *string
	if key, ok := keys[storage.ResultArtifact]; ok {
		resultKey = &key
	}
	err = util.RetryErrWithContext(ctx, storeTries, func(ctx context.Context) error {
		return w.Jobs.MarkDone(ctx, data.JobID, keys[storage.SnapshotArtifact], resultKey)
	})
	if err != nil {
		return err
	}

	logger.Info("[Queue] Export finished",
		"job_id", data.JobID,
		"model_id", data.ModelID,
		"processes", len(out.Snapshot.Processes),
		"solved", out.Result != nil,
		"duration", time.Since(start),
	)
	w.publish(ctx, ExportEvent{JobID: data.JobID, Status: jobs.StatusDone})
	return nil
}

// discardArtifacts removes the partial upload of a failed job.
func (w *Worker) discardArtifacts(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	prefix := storage.ArtifactKey(jobID, "") + "/"
	if err := w.Artifacts.DeletePrefix(ctx, prefix); err != nil {
		logger.Warn("[Queue] Failed to discard partial artifacts", "job_id", jobID, "prefix", prefix, "err", err)
	}
}

// settle marks the job failed. It runs on a fresh context so a cancelled
// delivery still leaves a status behind.
func (w *Worker) settle(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		logger.Warn("[Queue] Failed to mark export job as failed", "job_id", jobID, "err", err)
	}
	w.publish(ctx, ExportEvent{JobID: jobID, Status: jobs.StatusFailed, Error: cause.Error()})
}

// retrying records the failure of an attempt that goes back to the retry
// queue. No event is published until the job settles.
func (w *Worker) retrying(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Jobs.MarkRetrying(ctx, jobID, cause.Error()); err != nil {
		logger.Warn("[Queue] Failed to mark export job as retrying", "job_id", jobID, "err", err)
	}
}

func (w *Worker) publish(ctx context.Context, event ExportEvent) {
	if w.Events == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := PublishTopic(ctx, w.Events, "export."+event.Status, body); err != nil {
		logger.Warn("[Queue] Failed to publish export event", "job_id", event.JobID, "err", err)
	}
}

func classify(err error) error {
	var (
		invariant    *snapshot.InvariantError
		inconsistent *report.InconsistentUnitsError
	)
	if errors.As(err, &invariant) || errors.As(err, &inconsistent) {
		return &PermanentError{Err: err}
	}
	return err
}
