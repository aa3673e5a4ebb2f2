package snapshot

import (
	"context"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
)

// flowRecord is a parsed flow plus the flow properties it may be measured in.
type flowRecord struct {
	flow common.Flow
	// referenceProperty is the resolved reference flow property id, empty when
	// unresolved.
	referenceProperty string
	candidates        []string
}

type flowStage struct {
	flows        []*flowRecord
	propertyRefs []dataset.Ref
}

func (b *Builder) fetchFlows(ctx context.Context, refs []dataset.Ref) (*flowStage, error) {
	docs, err := b.fetchAll(ctx, dataset.KindFlow, refs)
	if err != nil {
		return nil, err
	}

	stage := &flowStage{flows: make([]*flowRecord, 0, len(docs))}
	propertyRefs := newRefSet()
	for _, doc := range docs {
		stage.flows = append(stage.flows, parseFlow(doc.id, doc.node, propertyRefs))
	}
	stage.propertyRefs = propertyRefs.list()
	return stage, nil
}

func parseFlow(flowID string, doc ilcd.Node, propertyRefs *refSet) *flowRecord {
	dataSet := doc.Get("flowDataSet")
	info := dataSet.Get("flowInformation")
	entries := dataSet.Get("flowProperties", "flowProperty").List()

	record := &flowRecord{
		flow: common.Flow{
			FlowUUID: flowID,
			FlowName: info.Get("dataSetInformation", "name").TextPtr(),
			FlowType: common.StringPtr(dataSet.Get("modellingAndValidation", "LCIMethod", "typeOfDataSet").String()),
		},
		candidates: make([]string, 0, len(entries)),
	}

	for _, entry := range entries {
		ref := entry.Get("referenceToFlowPropertyDataSet")
		id := ref.RefObjectID()
		if id == "" {
			continue
		}
		record.candidates = append(record.candidates, id)
		propertyRefs.add(id, ref.RefVersion())
	}

	declared, hasDeclared := info.Get("quantitativeReference", "referenceToReferenceFlowProperty").Attr()
	if entry, ok := selectReferenceFlowProperty(entries, declared, hasDeclared); ok {
		record.referenceProperty = entry.Get("referenceToFlowPropertyDataSet").RefObjectID()
	}

	return record
}
