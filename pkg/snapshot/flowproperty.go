package snapshot

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type flowPropertyStage struct {
	properties []common.FlowProperty
	// unitGroupByProperty maps a flow property id to its reference unit group.
	unitGroupByProperty map[string]string
	unitGroupRefs       []dataset.Ref
}

// fetchFlowProperties loads the property documents and, when the client
// supports it, the batched reference unit group lookup. Both run at the same
// time; the batched answer wins where both know a property.
func (b *Builder) fetchFlowProperties(ctx context.Context, refs []dataset.Ref) (*flowPropertyStage, error) {
	var (
		docs   []document
		listed []dataset.ReferenceUnitGroup
	)

	eg := new(errgroup.Group)
	eg.Go(func() error {
		var err error
		docs, err = b.fetchAll(ctx, dataset.KindFlowProperty, refs)
		return err
	})
	eg.Go(func() error {
		listed = b.listReferenceUnitGroups(ctx, refs)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]ilcd.Node, len(docs))
	for _, doc := range docs {
		byID[doc.id] = doc.node
	}
	listedByID := make(map[string]dataset.ReferenceUnitGroup, len(listed))
	for _, item := range listed {
		if item.ID == "" {
			continue
		}
		if _, ok := listedByID[item.ID]; !ok {
			listedByID[item.ID] = item
		}
	}

	stage := &flowPropertyStage{
		properties:          make([]common.FlowProperty, 0, len(refs)),
		unitGroupByProperty: make(map[string]string, len(refs)),
	}
	unitGroupRefs := newRefSet()
	for _, ref := range refs {
		node, fetched := byID[ref.ID]
		info, isListed := listedByID[ref.ID]
		if !fetched && !isListed {
			continue
		}

		propertyInfo := node.Get("flowPropertyDataSet", "flowPropertiesInformation")
		groupRef := propertyInfo.Get("quantitativeReference", "referenceToReferenceUnitGroup")

		unitGroupID := info.RefUnitGroupID
		if unitGroupID == "" {
			unitGroupID = groupRef.RefObjectID()
		}
		unitGroupVersion := groupRef.RefVersion()
		if unitGroupVersion == "" {
			unitGroupVersion = info.Version
		}

		name := common.StringPtr(info.Name)
		if name == nil {
			name = propertyInfo.Get("dataSetInformation", "common:name").TextPtr()
		}

		if unitGroupID != "" {
			stage.unitGroupByProperty[ref.ID] = unitGroupID
			unitGroupRefs.add(unitGroupID, unitGroupVersion)
		}
		stage.properties = append(stage.properties, common.FlowProperty{
			FlowPropertyUUID: ref.ID,
			FlowPropertyName: name,
			UnitGroupUUID:    common.StringPtr(unitGroupID),
		})
	}
	stage.unitGroupRefs = unitGroupRefs.list()
	return stage, nil
}

// listReferenceUnitGroups asks the client for the batched lookup. Clients
// without it, and failed lookups, yield nil so that the per-document
// references are used instead.
func (b *Builder) listReferenceUnitGroups(ctx context.Context, refs []dataset.Ref) []dataset.ReferenceUnitGroup {
	lister, ok := b.client.(dataset.ReferenceUnitGroupLister)
	if !ok || len(refs) == 0 {
		return nil
	}
	items, err := lister.GetReferenceUnitGroups(ctx, refs)
	if errors.Is(err, dataset.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("Reference unit group lookup failed, using flow property documents", "count", len(refs), "err", err)
		return nil
	}
	return items
}
