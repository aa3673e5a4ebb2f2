package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/memory"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/snapshot"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/solver"
)

func newPipeline(t *testing.T, solverURL string) *Pipeline {
	t.Helper()
	client, err := memory.LoadDir("testdata/datasets")
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	p := &Pipeline{
		Builder:    snapshot.NewBuilder(snapshot.NewBuilderParams{Client: client}),
		Indicators: report.IndicatorTable{0: "Climate change"},
	}
	if solverURL != "" {
		p.Solver = solver.NewClient(solver.NewClientParams{Endpoint: solverURL})
	}
	return p
}

func solverStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req common.SolverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Snapshot == nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"indicator_index":[0],"process_index":["proc-1"],"values":[[2.5]]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSnapshotOnly(t *testing.T) {
	p := newPipeline(t, "")
	out, err := p.Run(context.Background(), Request{ModelID: "model-1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out.Snapshot.Processes) != 1 || len(out.Snapshot.Exchanges) != 2 {
		t.Fatalf("unexpected snapshot %+v", out.Snapshot)
	}
	if out.Result != nil || out.CSV != "" {
		t.Fatalf("expected no solver output, got %+v", out)
	}

	artifacts, err := out.Artifacts()
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "snapshot.json" {
		t.Fatalf("unexpected artifacts %+v", artifacts)
	}
}

func TestRunSolved(t *testing.T) {
	p := newPipeline(t, solverStub(t).URL)
	out, err := p.Run(context.Background(), Request{ModelID: "model-1", Solve: true})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out.Labels) != 1 || out.Labels[0] != "Process A (per kg, proc-1)" {
		t.Fatalf("unexpected labels %v", out.Labels)
	}
	want := "\ufeffmethod_en,\"Process A (per kg, proc-1)\"\nClimate change,2.5"
	if out.CSV != want {
		t.Fatalf("CSV = %q, want %q", out.CSV, want)
	}

	artifacts, err := out.Artifacts()
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if len(artifacts) != 2 || artifacts[1].Name != "result.csv" || !strings.HasPrefix(artifacts[1].ContentType, "text/csv") {
		t.Fatalf("unexpected artifacts %+v", artifacts)
	}
}

func TestRunSolveWithoutSolver(t *testing.T) {
	p := newPipeline(t, "")
	_, err := p.Run(context.Background(), Request{ModelID: "model-1", Solve: true})
	if !errors.Is(err, ErrNoSolver) {
		t.Fatalf("expected ErrNoSolver, got %v", err)
	}
}

func TestRunMissingModel(t *testing.T) {
	p := newPipeline(t, "")
	_, err := p.Run(context.Background(), Request{ModelID: "nope"})
	var loadErr *snapshot.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
}
