package snapshot

import (
	"context"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
)

type unitGroupStage struct {
	groups []common.UnitGroup
	// unitsByGroup holds the full unit list of every fetched group. Only the
	// lists of referenced groups end up in the snapshot.
	unitsByGroup map[string][]common.Unit
	// referenceUnit maps a group id to its declared reference unit id.
	referenceUnit map[string]string
}

func (b *Builder) fetchUnitGroups(ctx context.Context, refs []dataset.Ref) (*unitGroupStage, error) {
	docs, err := b.fetchAll(ctx, dataset.KindUnitGroup, refs)
	if err != nil {
		return nil, err
	}

	stage := &unitGroupStage{
		groups:        make([]common.UnitGroup, 0, len(docs)),
		unitsByGroup:  make(map[string][]common.Unit, len(docs)),
		referenceUnit: make(map[string]string, len(docs)),
	}
	for _, doc := range docs {
		group, units := parseUnitGroup(doc.id, doc.node)
		stage.groups = append(stage.groups, group)
		stage.unitsByGroup[doc.id] = units
		if group.ReferenceUnitUUID != nil {
			stage.referenceUnit[doc.id] = *group.ReferenceUnitUUID
		}
	}
	return stage, nil
}

func parseUnitGroup(groupID string, doc ilcd.Node) (common.UnitGroup, []common.Unit) {
	dataSet := doc.Get("unitGroupDataSet")
	info := dataSet.Get("unitGroupInformation")

	group := common.UnitGroup{
		UnitGroupUUID:     groupID,
		UnitGroupName:     info.Get("dataSetInformation", "common:name").TextPtr(),
		ReferenceUnitUUID: common.StringPtr(info.Get("quantitativeReference", "referenceToReferenceUnit").String()),
	}

	entries := dataSet.Get("units", "unit").List()
	units := make([]common.Unit, 0, len(entries))
	for _, entry := range entries {
		unitID, ok := entry.Get("@dataSetInternalID").Attr()
		if !ok || unitID == "" {
			continue
		}
		unit := common.Unit{
			UnitUUID:      unitID,
			UnitGroupUUID: groupID,
		}
		unit.UnitName, _ = entry.Get("name").Text()
		if factor, ok := entry.Get("meanValue").Number(); ok {
			unit.ConversionFactorToReference = &factor
		}
		units = append(units, unit)
	}
	return group, units
}
