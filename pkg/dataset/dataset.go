// Package dataset defines the boundary to the dataset repository that holds
// lifecycle models, processes, flows, flow properties and unit groups.
//
// A failed lookup is reported as a non-nil error. Callers building
// snapshots treat such errors as soft failures: the record is left out and
// only becomes fatal when something that is actually exported needs it.
package dataset

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("dataset not found")

// Kind names a dataset table/type.
type Kind string

const (
	KindLifeCycleModel Kind = "lifecyclemodels"
	KindProcess        Kind = "processes"
	KindFlow           Kind = "flows"
	KindFlowProperty   Kind = "flowproperties"
	KindUnitGroup      Kind = "unitgroups"
)

// Kinds lists every dataset kind in pipeline order.
var Kinds = []Kind{KindLifeCycleModel, KindProcess, KindFlow, KindFlowProperty, KindUnitGroup}

// Ref is a reference to a dataset. An empty Version means "latest".
type Ref struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Dataset is a fetched record. JSON holds the raw document as stored.
type Dataset struct {
	ID      string
	Version string
	JSON    []byte
}

// ReferenceUnitGroup is the answer of the batched flow property lookup: the
// unit group a flow property refers to as its reference.
type ReferenceUnitGroup struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RefUnitGroupID string `json:"refUnitGroupId"`
	Version        string `json:"version"`
}

// Client retrieves single dataset records.
type Client interface {
	GetLifeCycleModelDetail(ctx context.Context, id, version string) (Dataset, error)
	GetProcessDetail(ctx context.Context, id, version string) (Dataset, error)
	GetFlowDetail(ctx context.Context, id, version string) (Dataset, error)
	GetFlowPropertyDetail(ctx context.Context, id, version string) (Dataset, error)
	GetUnitGroupDetail(ctx context.Context, id, version string) (Dataset, error)
}

// ReferenceUnitGroupLister is implemented by clients that can resolve the
// reference unit groups of many flow properties in one round trip.
type ReferenceUnitGroupLister interface {
	GetReferenceUnitGroups(ctx context.Context, refs []Ref) ([]ReferenceUnitGroup, error)
}

// Getter fetches one record of a fixed kind.
type Getter func(ctx context.Context, id, version string) (Dataset, error)

// GetterFor returns the client method serving the given kind.
func GetterFor(c Client, kind Kind) Getter {
	switch kind {
	case KindLifeCycleModel:
		return c.GetLifeCycleModelDetail
	case KindProcess:
		return c.GetProcessDetail
	case KindFlow:
		return c.GetFlowDetail
	case KindFlowProperty:
		return c.GetFlowPropertyDetail
	case KindUnitGroup:
		return c.GetUnitGroupDetail
	default:
		return func(ctx context.Context, id, version string) (Dataset, error) {
			return Dataset{}, ErrNotFound
		}
	}
}
