package snapshot

import (
	"context"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// document is a successfully fetched and parsed dataset.
type document struct {
	id      string
	version string
	node    ilcd.Node
}

// refSet collects distinct references in discovery order. The first version
// seen for an id wins.
type refSet struct {
	refs []dataset.Ref
	seen map[string]struct{}
}

func newRefSet() *refSet {
	return &refSet{seen: make(map[string]struct{})}
}

func (s *refSet) add(id, version string) {
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.refs = append(s.refs, dataset.Ref{ID: id, Version: version})
}

func (s *refSet) list() []dataset.Ref {
	return s.refs
}

// fetchAll fetches every ref concurrently. Failed or unparsable lookups are
// logged and left out; they never cancel sibling lookups. The returned
// documents keep the order of refs.
func (b *Builder) fetchAll(ctx context.Context, kind dataset.Kind, refs []dataset.Ref) ([]document, error) {
	get := dataset.GetterFor(b.client, kind)
	results := make([]*document, len(refs))

	eg := new(errgroup.Group)
	eg.SetLimit(b.parallelism)

	for i, ref := range refs {
		eg.Go(func() error {
			d, err := get(ctx, ref.ID, ref.Version)
			if err != nil {
				metrics.RecordFetch(string(kind), false)
				logger.Warn("Dataset lookup failed", "kind", kind, "id", ref.ID, "version", ref.Version, "err", err)
				return nil
			}
			node, err := ilcd.Parse(d.JSON)
			if err != nil {
				metrics.RecordFetch(string(kind), false)
				logger.Warn("Dataset document unreadable", "kind", kind, "id", ref.ID, "version", ref.Version, "err", err)
				return nil
			}
			metrics.RecordFetch(string(kind), true)

			id := d.ID
			if id == "" {
				id = ref.ID
			}
			version := d.Version
			if version == "" {
				version = ref.Version
			}
			results[i] = &document{id: id, version: version, node: node}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]document, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, ok := seen[r.id]; ok {
			continue
		}
		seen[r.id] = struct{}{}
		docs = append(docs, *r)
	}

	logger.Debug("[Snapshot] Stage fetched", "kind", kind, "requested", len(refs), "fetched", len(docs))
	return docs, nil
}
