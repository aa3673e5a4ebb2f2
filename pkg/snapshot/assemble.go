package snapshot

import (
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
)

// assemble joins the stage results into the snapshot and runs the
// integrity checks. Stage results are only read.
func assemble(
	model *modelStage,
	processes *processStage,
	flows *flowStage,
	properties *flowPropertyStage,
	groups *unitGroupStage,
) (*common.Snapshot, error) {
	knownGroups := make(map[string]struct{}, len(groups.groups))
	for _, g := range groups.groups {
		knownGroups[g.UnitGroupUUID] = struct{}{}
	}

	// Only groups that were actually fetched can be pointed at.
	unitGroupByProperty := make(map[string]string, len(properties.unitGroupByProperty))
	for propertyID, groupID := range properties.unitGroupByProperty {
		if _, ok := knownGroups[groupID]; ok {
			unitGroupByProperty[propertyID] = groupID
		}
	}

	flowList := make([]common.Flow, 0, len(flows.flows))
	flowIDs := make(map[string]struct{}, len(flows.flows))
	referencedGroups := make(map[string]struct{})
	for _, record := range flows.flows {
		flow := record.flow
		if groupID, ok := selectUnitGroup(record.referenceProperty, record.candidates, unitGroupByProperty); ok {
			flow.UnitGroupUUID = &groupID
			if unitID, ok := groups.referenceUnit[groupID]; ok {
				flow.DefaultUnitUUID = &unitID
			}
			referencedGroups[groupID] = struct{}{}
		}
		flowList = append(flowList, flow)
		flowIDs[flow.FlowUUID] = struct{}{}
	}

	propertyList := make([]common.FlowProperty, 0, len(properties.properties))
	for _, property := range properties.properties {
		if groupID, ok := unitGroupByProperty[property.FlowPropertyUUID]; ok {
			property.UnitGroupUUID = &groupID
		} else {
			property.UnitGroupUUID = nil
		}
		propertyList = append(propertyList, property)
	}

	units := make([]common.Unit, 0)
	for _, g := range groups.groups {
		if _, ok := referencedGroups[g.UnitGroupUUID]; !ok {
			continue
		}
		units = append(units, groups.unitsByGroup[g.UnitGroupUUID]...)
	}

	if err := checkExchanges(processes.exchanges, flowIDs); err != nil {
		return nil, err
	}
	if err := checkLinks(model.links, processes.processes, flowIDs); err != nil {
		return nil, err
	}

	return &common.Snapshot{
		Model:          model.model,
		Processes:      processes.processes,
		Flows:          flowList,
		Exchanges:      processes.exchanges,
		FlowProperties: propertyList,
		UnitGroups:     groups.groups,
		Units:          units,
		Links:          model.links,
	}, nil
}

func checkExchanges(exchanges []common.Exchange, flowIDs map[string]struct{}) error {
	for _, ex := range exchanges {
		if ex.FlowUUID == nil {
			continue
		}
		if _, ok := flowIDs[*ex.FlowUUID]; !ok {
			return &InvariantError{
				ProcessUUID: ex.ProcessUUID,
				FlowUUID:    *ex.FlowUUID,
				Reason:      "exchange references a flow missing from the snapshot",
			}
		}
	}
	return nil
}

func checkLinks(links []common.Link, processes []common.Process, flowIDs map[string]struct{}) error {
	processIDs := make(map[string]struct{}, len(processes))
	for _, p := range processes {
		processIDs[p.ProcessUUID] = struct{}{}
	}

	for _, link := range links {
		if link.FlowUUID != nil {
			if _, ok := flowIDs[*link.FlowUUID]; !ok {
				return &InvariantError{
					ProcessUUID: link.ConsumerProcessUUID,
					FlowUUID:    *link.FlowUUID,
					Reason:      "link references a flow missing from the snapshot",
				}
			}
		}
		for _, endpoint := range []string{link.ProviderProcessUUID, link.ConsumerProcessUUID} {
			if _, ok := processIDs[endpoint]; !ok {
				return &InvariantError{
					ProcessUUID: endpoint,
					FlowUUID:    common.Deref(link.FlowUUID),
					Reason:      "link endpoint is not an exported process",
				}
			}
		}
	}
	return nil
}
