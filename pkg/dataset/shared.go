package dataset

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// SharedClient collapses identical in-flight lookups issued by concurrent
// snapshot builds into a single call to the underlying client.
type SharedClient struct {
	inner Client
	group singleflight.Group
}

// NewSharedClient wraps inner. If inner also implements
// ReferenceUnitGroupLister the wrapper forwards batched lookups unchanged.
func NewSharedClient(inner Client) *SharedClient {
	return &SharedClient{inner: inner}
}

func (s *SharedClient) do(ctx context.Context, kind Kind, id, version string) (Dataset, error) {
	key := string(kind) + "/" + id + "@" + version
	getter := GetterFor(s.inner, kind)
	result, err, _ := s.group.Do(key, func() (any, error) {
		return getter(ctx, id, version)
	})
	if err != nil {
		return Dataset{}, err
	}
	return result.(Dataset), nil
}

func (s *SharedClient) GetLifeCycleModelDetail(ctx context.Context, id, version string) (Dataset, error) {
	return s.do(ctx, KindLifeCycleModel, id, version)
}

func (s *SharedClient) GetProcessDetail(ctx context.Context, id, version string) (Dataset, error) {
	return s.do(ctx, KindProcess, id, version)
}

func (s *SharedClient) GetFlowDetail(ctx context.Context, id, version string) (Dataset, error) {
	return s.do(ctx, KindFlow, id, version)
}

func (s *SharedClient) GetFlowPropertyDetail(ctx context.Context, id, version string) (Dataset, error) {
	return s.do(ctx, KindFlowProperty, id, version)
}

func (s *SharedClient) GetUnitGroupDetail(ctx context.Context, id, version string) (Dataset, error) {
	return s.do(ctx, KindUnitGroup, id, version)
}

func (s *SharedClient) GetReferenceUnitGroups(ctx context.Context, refs []Ref) ([]ReferenceUnitGroup, error) {
	lister, ok := s.inner.(ReferenceUnitGroupLister)
	if !ok {
		return nil, ErrNotFound
	}
	return lister.GetReferenceUnitGroups(ctx, refs)
}
