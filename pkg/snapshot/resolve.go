package snapshot

import (
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
)

// firstMatch evaluates ranked rules in order and returns the first match.
func firstMatch[T any](rules ...func() (T, bool)) (T, bool) {
	for _, r := range rules {
		if v, ok := r(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// findFirst returns the first node satisfying pred, in document order.
func findFirst(nodes []ilcd.Node, pred func(ilcd.Node) bool) (ilcd.Node, bool) {
	for _, n := range nodes {
		if pred(n) {
			return n, true
		}
	}
	return ilcd.Node{}, false
}

// selectReferenceExchange picks the reference-product exchange of a process:
//  1. the exchange whose flow is the declared reference flow,
//  2. the first exchange flagged as quantitative reference.
func selectReferenceExchange(exchanges []ilcd.Node, declaredFlowID string) (ilcd.Node, bool) {
	return firstMatch(
		func() (ilcd.Node, bool) {
			if declaredFlowID == "" {
				return ilcd.Node{}, false
			}
			return findFirst(exchanges, func(ex ilcd.Node) bool {
				return ex.Get("referenceToFlowDataSet").RefObjectID() == declaredFlowID
			})
		},
		func() (ilcd.Node, bool) {
			return findFirst(exchanges, func(ex ilcd.Node) bool {
				return ex.Get("quantitativeReference").Truthy()
			})
		},
	)
}

// selectReferenceFlowProperty picks the reference flow property of a flow:
//  1. the entry whose internal id equals the declared pointer,
//  2. the entry explicitly flagged as quantitative reference,
//  3. the only entry, when there is exactly one.
func selectReferenceFlowProperty(entries []ilcd.Node, declaredInternalID string, hasDeclared bool) (ilcd.Node, bool) {
	return firstMatch(
		func() (ilcd.Node, bool) {
			if !hasDeclared {
				return ilcd.Node{}, false
			}
			return findFirst(entries, func(p ilcd.Node) bool {
				id, ok := p.Get("@dataSetInternalID").Attr()
				return ok && id == declaredInternalID
			})
		},
		func() (ilcd.Node, bool) {
			return findFirst(entries, func(p ilcd.Node) bool {
				return p.Get("quantitativeReference").IsTrue()
			})
		},
		func() (ilcd.Node, bool) {
			if len(entries) != 1 {
				return ilcd.Node{}, false
			}
			return entries[0], true
		},
	)
}

// selectUnitGroup resolves the unit group of a flow:
//  1. the unit group of the resolved reference flow property,
//  2. the single distinct unit group reachable from all candidates.
func selectUnitGroup(referenceProperty string, candidates []string, unitGroupByProperty map[string]string) (string, bool) {
	return firstMatch(
		func() (string, bool) {
			if referenceProperty == "" {
				return "", false
			}
			group, ok := unitGroupByProperty[referenceProperty]
			return group, ok && group != ""
		},
		func() (string, bool) {
			distinct := make(map[string]struct{})
			var only string
			for _, candidate := range candidates {
				group := unitGroupByProperty[candidate]
				if group == "" {
					continue
				}
				distinct[group] = struct{}{}
				only = group
			}
			return only, len(distinct) == 1
		},
	)
}
