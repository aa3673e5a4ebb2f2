// Package report turns solver results into human-readable output: process
// labels qualified by their reference unit, and the result CSV.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
)

// InconsistentUnitsError reports a process whose allocated co-products are
// measured in more than one unit group, so no single "per unit" label fits.
type InconsistentUnitsError struct {
	ProcessUUID string
}

func (e *InconsistentUnitsError) Error() string {
	return fmt.Sprintf("inconsistent product units in process %s", e.ProcessUUID)
}

// snapshotIndex holds the lookups label resolution needs.
type snapshotIndex struct {
	processName   map[string]*string
	flows         map[string]common.Flow
	referenceUnit map[string]string
	units         map[string]common.Unit // key: group + ":" + unit
	unitOwner     map[string]string      // unit id -> first group declaring it
	exchanges     map[string][]common.Exchange
}

func newSnapshotIndex(snap *common.Snapshot) *snapshotIndex {
	idx := &snapshotIndex{
		processName:   make(map[string]*string, len(snap.Processes)),
		flows:         make(map[string]common.Flow, len(snap.Flows)),
		referenceUnit: make(map[string]string, len(snap.UnitGroups)),
		units:         make(map[string]common.Unit, len(snap.Units)),
		unitOwner:     make(map[string]string, len(snap.Units)),
		exchanges:     make(map[string][]common.Exchange, len(snap.Processes)),
	}
	for _, p := range snap.Processes {
		idx.processName[p.ProcessUUID] = p.ProcessName
	}
	for _, f := range snap.Flows {
		idx.flows[f.FlowUUID] = f
	}
	for _, g := range snap.UnitGroups {
		if g.ReferenceUnitUUID != nil {
			idx.referenceUnit[g.UnitGroupUUID] = *g.ReferenceUnitUUID
		}
	}
	for _, u := range snap.Units {
		idx.units[u.UnitGroupUUID+":"+u.UnitUUID] = u
		if _, ok := idx.unitOwner[u.UnitUUID]; !ok {
			idx.unitOwner[u.UnitUUID] = u.UnitGroupUUID
		}
	}
	for _, ex := range snap.Exchanges {
		idx.exchanges[ex.ProcessUUID] = append(idx.exchanges[ex.ProcessUUID], ex)
	}
	return idx
}

// unitGroupOf returns the flow's unit group, else the group owning its
// default unit.
func (idx *snapshotIndex) unitGroupOf(flowID string) string {
	flow, ok := idx.flows[flowID]
	if !ok {
		return ""
	}
	if flow.UnitGroupUUID != nil {
		return *flow.UnitGroupUUID
	}
	if flow.DefaultUnitUUID != nil {
		return idx.unitOwner[*flow.DefaultUnitUUID]
	}
	return ""
}

// referenceExchange matches the declared reference against exchange ids
// first and falls back to the flagged reference product.
func referenceExchange(exchanges []common.Exchange, declared *string) (common.Exchange, bool) {
	if declared != nil && *declared != "" {
		for _, ex := range exchanges {
			if ex.ExchangeID != nil && *ex.ExchangeID == *declared && ex.FlowUUID != nil {
				return ex, true
			}
		}
	}
	for _, ex := range exchanges {
		if ex.IsReferenceProduct && ex.FlowUUID != nil {
			return ex, true
		}
	}
	return common.Exchange{}, false
}

func (idx *snapshotIndex) unitName(process common.Process) (string, bool) {
	ex, ok := referenceExchange(idx.exchanges[process.ProcessUUID], process.ReferenceProductFlowUUID)
	if !ok {
		return "", false
	}
	flowID := *ex.FlowUUID
	group := idx.unitGroupOf(flowID)

	unitID := idx.referenceUnit[group]
	if unitID == "" {
		unitID = common.Deref(idx.flows[flowID].DefaultUnitUUID)
	}
	if unitID == "" || group == "" {
		return "", false
	}
	unit, ok := idx.units[group+":"+unitID]
	if !ok || unit.UnitName == "" {
		return "", false
	}
	return unit.UnitName, true
}

// checkCoProducts fails when the allocated co-products of a process span
// more than one unit group.
func (idx *snapshotIndex) checkCoProducts(processID string) error {
	groups := make(map[string]struct{})
	products := 0
	for _, ex := range idx.exchanges[processID] {
		fraction, ok := ParseAllocationFraction(ex.AllocationFraction)
		if !ok || fraction == 0 {
			continue
		}
		products++
		if ex.FlowUUID == nil {
			continue
		}
		if group := idx.unitGroupOf(*ex.FlowUUID); group != "" {
			groups[group] = struct{}{}
		}
	}
	if products > 1 && len(groups) > 1 {
		return &InconsistentUnitsError{ProcessUUID: processID}
	}
	return nil
}

// ResolveProcessLabels returns one label per entry of result.ProcessIndex:
//
//	"<name> (per <unit>, <process_uuid>)"
//	"<process_uuid> (per <unit>)"   when the process has no name
//
// An unknown unit is written as "-". Every process of the snapshot is
// checked for consistent co-product units, not only the listed ones.
func ResolveProcessLabels(snap *common.Snapshot, result *common.SolverResult) ([]string, error) {
	idx := newSnapshotIndex(snap)

	unitNames := make(map[string]string, len(snap.Processes))
	for _, p := range snap.Processes {
		if err := idx.checkCoProducts(p.ProcessUUID); err != nil {
			return nil, err
		}
		if name, ok := idx.unitName(p); ok {
			unitNames[p.ProcessUUID] = name
		}
	}

	labels := make([]string, 0, len(result.ProcessIndex))
	for _, processID := range result.ProcessIndex {
		unit := "-"
		if name, ok := unitNames[processID]; ok {
			unit = name
		}
		if name := common.Deref(idx.processName[processID]); name != "" {
			labels = append(labels, fmt.Sprintf("%s (per %s, %s)", name, unit, processID))
			continue
		}
		labels = append(labels, fmt.Sprintf("%s (per %s)", processID, unit))
	}
	return labels, nil
}

// ParseAllocationFraction reads a raw allocation fraction: a number, a
// numeric string or a percentage string ("10%" is 0.1). Anything else
// reports false.
func ParseAllocationFraction(raw json.RawMessage) (float64, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, false
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		return 0, false
	}

	scale := 1.0
	if strings.HasSuffix(text, "%") {
		text = strings.TrimSpace(strings.TrimSuffix(text, "%"))
		scale = 100
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || isNotFinite(f) {
		return 0, false
	}
	return f / scale, true
}
