// Package export runs the full model export: snapshot, optional LCIA solve,
// process labels and the result CSV.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/lcaexport/backend/internal/storage"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/report"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/solver"
)

var ErrNoSolver = errors.New("no LCIA solver configured")

type Pipeline struct {
	Builder solver.SnapshotBuilder
	// Solver may be nil, then only the snapshot is produced.
	Solver     *solver.Client
	Indicators report.IndicatorTable
}

type Request struct {
	ModelID string
	Version string
	Commit  string
	Solve   bool
}

type Output struct {
	Snapshot *common.Snapshot     `json:"snapshot"`
	Result   *common.SolverResult `json:"result,omitempty"`
	Labels   []string             `json:"labels,omitempty"`
	CSV      string               `json:"-"`
}

type Artifact struct {
	Name        string
	ContentType string
	Body        []byte
}

func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	if !req.Solve {
		snap, err := p.Builder.Build(ctx, req.ModelID, req.Version, req.Commit)
		if err != nil {
			return nil, err
		}
		return &Output{Snapshot: snap}, nil
	}
	if p.Solver == nil {
		return nil, ErrNoSolver
	}

	snap, result, err := p.Solver.RunForModel(ctx, p.Builder, req.ModelID, req.Version, req.Commit)
	if err != nil {
		return nil, err
	}
	labels, err := report.ResolveProcessLabels(snap, result)
	if err != nil {
		return nil, err
	}
	return &Output{
		Snapshot: snap,
		Result:   result,
		Labels:   labels,
		CSV:      report.EncodeResultCSV(result, labels, p.Indicators),
	}, nil
}

// Artifacts lists the files of an export. result.csv is only present when
// the model was solved.
func (o *Output) Artifacts() ([]Artifact, error) {
	snapJSON, err := json.MarshalIndent(o.Snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	artifacts := []Artifact{{
		Name:        storage.SnapshotArtifact,
		ContentType: "application/json",
		Body:        snapJSON,
	}}
	if o.Result != nil {
		artifacts = append(artifacts, Artifact{
			Name:        storage.ResultArtifact,
			ContentType: "text/csv; charset=utf-8",
			Body:        []byte(o.CSV),
		})
	}
	return artifacts, nil
}
