// Package snapshot turns a lifecycle model and the datasets it references
// into a flat, relationally consistent common.Snapshot.
//
// A build runs in strictly ordered stages: model, processes, flows, flow
// properties, unit groups. Each stage discovers the references of the next
// one and fetches them concurrently. Lookups that fail are left out; the
// final assembly pass decides whether a missing record is fatal.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/metrics"
)

const DefaultParallelism = 16

// ExportTimeLayout is the layout of Model.ExportTime (UTC, millisecond
// precision).
const ExportTimeLayout = "2006-01-02T15:04:05.000Z"

// Builder builds snapshots against a dataset client. It is safe for
// concurrent use.
type Builder struct {
	client      dataset.Client
	parallelism int
	now         func() time.Time
}

type NewBuilderParams struct {
	Client dataset.Client
	// Parallelism bounds the concurrent lookups of one stage. Values below
	// one use DefaultParallelism.
	Parallelism int
	// Clock overrides time.Now for the export timestamp.
	Clock func() time.Time
}

func NewBuilder(params NewBuilderParams) *Builder {
	parallelism := params.Parallelism
	if parallelism < 1 {
		parallelism = DefaultParallelism
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &Builder{
		client:      params.Client,
		parallelism: parallelism,
		now:         now,
	}
}

// Build exports the lifecycle model modelID at version. commit is recorded
// in the model header when not empty.
//
// The returned error is a *LoadError when the model itself cannot be
// loaded, an *InvariantError when the assembled snapshot would be
// inconsistent, or the context error when ctx ends first.
func (b *Builder) Build(ctx context.Context, modelID, version, commit string) (*common.Snapshot, error) {
	start := time.Now()
	snap, err := b.build(ctx, modelID, version, commit)
	duration := time.Since(start)

	if err != nil {
		status := metrics.StatusFailed
		var invariantErr *InvariantError
		if errors.As(err, &invariantErr) {
			status = metrics.StatusInvalid
		}
		metrics.RecordBuild(status, duration)
		logger.Error("[Snapshot] Build failed", "model", modelID, "version", version, "err", err)
		return nil, err
	}

	metrics.RecordBuild(metrics.StatusOK, duration)
	logger.Info("[Snapshot] Build finished",
		"model", modelID,
		"version", version,
		"processes", len(snap.Processes),
		"exchanges", len(snap.Exchanges),
		"flows", len(snap.Flows),
		"unit_groups", len(snap.UnitGroups),
		"links", len(snap.Links),
		"duration", duration,
	)
	return snap, nil
}

func (b *Builder) build(ctx context.Context, modelID, version, commit string) (*common.Snapshot, error) {
	model, err := b.loadModel(ctx, modelID, version)
	if err != nil {
		return nil, err
	}
	model.model.ExportTime = b.now().UTC().Format(ExportTimeLayout)
	model.model.Commit = common.StringPtr(commit)

	processes, err := b.fetchProcesses(ctx, model.processRefs)
	if err != nil {
		return nil, err
	}
	flows, err := b.fetchFlows(ctx, processes.flowRefs)
	if err != nil {
		return nil, err
	}
	properties, err := b.fetchFlowProperties(ctx, flows.propertyRefs)
	if err != nil {
		return nil, err
	}
	groups, err := b.fetchUnitGroups(ctx, properties.unitGroupRefs)
	if err != nil {
		return nil, err
	}

	return assemble(model, processes, flows, properties, groups)
}
