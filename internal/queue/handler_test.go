package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/export"
	"github.com/OFFIS-RIT/lcaexport/backend/internal/jobs"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/memory"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/exportlock"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/snapshot"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/solver"

	"github.com/rabbitmq/amqp091-go"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*jobs.Job
}

func newFakeJobs(ids ...string) *fakeJobs {
	f := &fakeJobs{jobs: make(map[string]*jobs.Job)}
	for _, id := range ids {
		f.jobs[id] = &jobs.Job{ID: id, Status: jobs.StatusQueued}
	}
	return f
}

func (f *fakeJobs) Create(ctx context.Context, job jobs.Job) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Status = jobs.StatusQueued
	f.jobs[job.ID] = &job
	return job, nil
}

func (f *fakeJobs) Get(ctx context.Context, id string) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return *job, nil
}

func (f *fakeJobs) set(id string, fn func(*jobs.Job)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return jobs.ErrNotFound
	}
	fn(job)
	return nil
}

func (f *fakeJobs) MarkRunning(ctx context.Context, id string) error {
	return f.set(id, func(j *jobs.Job) { j.Status = jobs.StatusRunning })
}

func (f *fakeJobs) MarkDone(ctx context.Context, id string, snapshotKey string, resultKey *string) error {
	return f.set(id, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.SnapshotKey = &snapshotKey
		j.ResultKey = resultKey
	})
}

func (f *fakeJobs) MarkRetrying(ctx context.Context, id string, reason string) error {
	return f.set(id, func(j *jobs.Job) {
		j.Status = jobs.StatusRetrying
		j.Error = &reason
	})
}

func (f *fakeJobs) MarkFailed(ctx context.Context, id string, reason string) error {
	return f.set(id, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Error = &reason
	})
}

type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failPut bool
}

func (f *fakeArtifacts) Put(ctx context.Context, key, contentType string, body []byte) error {
	if f.failPut {
		return errors.New("bucket unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = body
	return nil
}

func (f *fakeArtifacts) DownloadLink(ctx context.Context, key string) (string, error) {
	return "https://s3.example.test/" + key, nil
}

func (f *fakeArtifacts) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, prefix)
	return nil
}

type fakeLocker struct {
	keys []string
}

func (f *fakeLocker) WithLease(ctx context.Context, key string, opts exportlock.Options, fn func(ctx context.Context) error) error {
	f.keys = append(f.keys, key)
	return fn(ctx)
}

type published struct {
	exchange, key string
	msg           amqp091.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func newWorker(t *testing.T, solverHandler http.HandlerFunc) (*Worker, *fakeJobs, *fakeArtifacts, *fakePublisher) {
	t.Helper()
	client, err := memory.LoadDir("../export/testdata/datasets")
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	srv := httptest.NewServer(solverHandler)
	t.Cleanup(srv.Close)

	store := newFakeJobs("job-1")
	artifacts := &fakeArtifacts{}
	events := &fakePublisher{}
	w := &Worker{
		Pipeline: &export.Pipeline{
			Builder:    snapshot.NewBuilder(snapshot.NewBuilderParams{Client: client}),
			Solver:     solver.NewClient(solver.NewClientParams{Endpoint: srv.URL}),
			Indicators: report.IndicatorTable{},
		},
		Jobs:      store,
		Artifacts: artifacts,
		Locker:    &fakeLocker{},
		Events:    events,
		Holder:    "worker-test-",
	}
	return w, store, artifacts, events
}

func okSolver(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"indicator_index":["GWP"],"process_index":["proc-1"],"values":[[4]]}`))
}

func message(t *testing.T, msg ExportJobMsg) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestProcessExportMessage(t *testing.T) {
	w, store, artifacts, events := newWorker(t, okSolver)

	err := w.ProcessExportMessage(context.Background(), message(t, ExportJobMsg{
		JobID: "job-1", ModelID: "model-1", Version: "01.00.000", Solve: true,
	}), false)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s", job.Status)
	}
	if job.SnapshotKey == nil || *job.SnapshotKey != "exports/job-1/snapshot.json" {
		t.Fatalf("snapshot key = %v", job.SnapshotKey)
	}
	if job.ResultKey == nil || *job.ResultKey != "exports/job-1/result.csv" {
		t.Fatalf("result key = %v", job.ResultKey)
	}

	csv := string(artifacts.objects["exports/job-1/result.csv"])
	if !strings.Contains(csv, "GWP,4") || !strings.Contains(csv, "Process A (per kg, proc-1)") {
		t.Fatalf("unexpected csv %q", csv)
	}
	if len(artifacts.objects["exports/job-1/snapshot.json"]) == 0 {
		t.Fatal("snapshot not uploaded")
	}

	if keys := w.Locker.(*fakeLocker).keys; len(keys) != 1 || keys[0] != "export:model-1@01.00.000" {
		t.Fatalf("lease keys = %v", keys)
	}
	if len(events.msgs) != 1 || events.msgs[0].exchange != EventsExchange || events.msgs[0].key != "export.done" {
		t.Fatalf("events = %+v", events.msgs)
	}
}

func TestProcessExportMessageSnapshotOnly(t *testing.T) {
	w, store, artifacts, _ := newWorker(t, okSolver)

	if err := w.ProcessExportMessage(context.Background(), message(t, ExportJobMsg{JobID: "job-1", ModelID: "model-1"}), false); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusDone || job.ResultKey != nil {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(artifacts.objects) != 1 {
		t.Fatalf("expected only the snapshot, got %d objects", len(artifacts.objects))
	}
}

func TestProcessExportMessageSolverFailure(t *testing.T) {
	var calls atomic.Int32
	w, store, _, events := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "solver down", http.StatusBadGateway)
			return
		}
		okSolver(w, r)
	})
	body := message(t, ExportJobMsg{JobID: "job-1", ModelID: "model-1", Solve: true})

	err := w.ProcessExportMessage(context.Background(), body, false)
	var reqErr *solver.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		t.Fatal("solver failures should be retried")
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusRetrying || job.Error == nil {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(events.msgs) != 0 {
		t.Fatalf("expected no events before the job settles, got %+v", events.msgs)
	}

	if err := w.ProcessExportMessage(context.Background(), body, false); err != nil {
		t.Fatalf("expected nil error on retry, got %v", err)
	}
	job, _ = store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s", job.Status)
	}
	if len(events.msgs) != 1 || events.msgs[0].key != "export.done" {
		t.Fatalf("events = %+v", events.msgs)
	}
}

func TestProcessExportMessageFinalAttempt(t *testing.T) {
	w, store, _, events := newWorker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "solver down", http.StatusBadGateway)
	})

	err := w.ProcessExportMessage(context.Background(), message(t, ExportJobMsg{JobID: "job-1", ModelID: "model-1", Solve: true}), true)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusFailed || job.Error == nil {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(events.msgs) != 1 || events.msgs[0].key != "export.failed" {
		t.Fatalf("events = %+v", events.msgs)
	}
}

func TestProcessExportMessageInvariantFailure(t *testing.T) {
	w, store, _, events := newWorker(t, okSolver)
	client, err := memory.LoadDir("../export/testdata/datasets")
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	// proc-1 keeps its exchange for flow-2, which can no longer be fetched.
	w.Pipeline.Builder = snapshot.NewBuilder(snapshot.NewBuilderParams{Client: client.Fail("flow-2")})

	err = w.ProcessExportMessage(context.Background(), message(t, ExportJobMsg{JobID: "job-1", ModelID: "model-1"}), false)
	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if len(events.msgs) != 1 || events.msgs[0].key != "export.failed" {
		t.Fatalf("events = %+v", events.msgs)
	}
}

func TestProcessExportMessagePermanentFailures(t *testing.T) {
	w, _, _, _ := newWorker(t, okSolver)

	tests := []struct {
		name string
		body []byte
	}{
		{name: "InvalidJSON", body: []byte("{")},
		{name: "MissingModel", body: message(t, ExportJobMsg{JobID: "job-1"})},
		{name: "UnknownJob", body: message(t, ExportJobMsg{JobID: "job-x", ModelID: "model-1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.ProcessExportMessage(context.Background(), tt.body, false)
			var permanent *PermanentError
			if !errors.As(err, &permanent) {
				t.Fatalf("expected PermanentError, got %v", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	var permanent *PermanentError
	if !errors.As(classify(&snapshot.InvariantError{ProcessUUID: "p", Reason: "x"}), &permanent) {
		t.Fatal("invariant errors are permanent")
	}
	if !errors.As(classify(&report.InconsistentUnitsError{ProcessUUID: "p"}), &permanent) {
		t.Fatal("inconsistent units are permanent")
	}
	if errors.As(classify(errors.New("timeout")), &permanent) {
		t.Fatal("plain errors are retried")
	}
}

func TestProcessExportMessageUploadFailure(t *testing.T) {
	w, store, artifacts, _ := newWorker(t, okSolver)
	artifacts.failPut = true

	err := w.ProcessExportMessage(context.Background(), message(t, ExportJobMsg{JobID: "job-1", ModelID: "model-1"}), false)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(artifacts.deleted) != 1 || artifacts.deleted[0] != "exports/job-1/" {
		t.Fatalf("deleted = %v", artifacts.deleted)
	}
	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusRetrying {
		t.Fatalf("status = %s", job.Status)
	}
}
