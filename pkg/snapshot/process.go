package snapshot

import (
	"context"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
)

type processStage struct {
	processes []common.Process
	exchanges []common.Exchange
	flowRefs  []dataset.Ref
}

func (b *Builder) fetchProcesses(ctx context.Context, refs []dataset.Ref) (*processStage, error) {
	docs, err := b.fetchAll(ctx, dataset.KindProcess, refs)
	if err != nil {
		return nil, err
	}

	stage := &processStage{
		processes: make([]common.Process, 0, len(docs)),
		exchanges: make([]common.Exchange, 0),
	}
	flowRefs := newRefSet()
	for _, doc := range docs {
		process, exchanges, err := parseProcess(doc.id, doc.node, flowRefs)
		if err != nil {
			return nil, err
		}
		stage.processes = append(stage.processes, process)
		stage.exchanges = append(stage.exchanges, exchanges...)
	}
	stage.flowRefs = flowRefs.list()
	return stage, nil
}

// parseProcess extracts the process record and its exchanges, and registers
// every referenced flow in flowRefs.
func parseProcess(processID string, doc ilcd.Node, flowRefs *refSet) (common.Process, []common.Exchange, error) {
	dataSet := doc.Get("processDataSet")
	info := dataSet.Get("processInformation")
	declared := info.Get("quantitativeReference", "referenceToReferenceFlow").String()
	exchangeNodes := dataSet.Get("exchanges", "exchange").List()

	// Without a matching exchange the process has no reference product.
	var referenceFlowID string
	if ex, ok := selectReferenceExchange(exchangeNodes, declared); ok {
		referenceFlowID = ex.Get("referenceToFlowDataSet").RefObjectID()
	}

	process := common.Process{
		ProcessUUID:              processID,
		ProcessName:              info.Get("dataSetInformation", "name").TextPtr(),
		ReferenceProductFlowUUID: common.StringPtr(referenceFlowID),
	}

	exchanges := make([]common.Exchange, 0, len(exchangeNodes))
	for _, ex := range exchangeNodes {
		flowRef := ex.Get("referenceToFlowDataSet")
		flowID := flowRef.RefObjectID()
		flowRefs.add(flowID, flowRef.RefVersion())

		amount, ok := exchangeAmount(ex)
		if !ok {
			return common.Process{}, nil, &InvariantError{
				ProcessUUID: processID,
				FlowUUID:    flowID,
				Reason:      "exchange amount is not a finite number",
			}
		}

		var exchangeID *string
		if id, ok := ex.Get("@dataSetInternalID").Attr(); ok {
			exchangeID = &id
		}

		exchanges = append(exchanges, common.Exchange{
			ExchangeID:         exchangeID,
			ProcessUUID:        processID,
			FlowUUID:           common.StringPtr(flowID),
			Direction:          common.StringPtr(ex.Get("exchangeDirection").String()),
			Amount:             amount,
			IsReferenceProduct: ex.Get("quantitativeReference").Truthy() || (flowID != "" && flowID == referenceFlowID),
			AllocationFraction: allocationFraction(ex),
		})
	}

	return process, exchanges, nil
}

// exchangeAmount prefers resultingAmount when it is a non-zero number. A
// resulting amount of zero means "not computed yet" and falls back to
// meanAmount.
func exchangeAmount(ex ilcd.Node) (float64, bool) {
	if v, ok := ex.Get("resultingAmount").Number(); ok && v != 0 {
		return v, true
	}
	return ex.Get("meanAmount").Number()
}

// allocationFraction keeps the raw "@allocatedFraction" of the first
// allocation entry.
func allocationFraction(ex ilcd.Node) []byte {
	allocations := ex.Get("allocations", "allocation").List()
	if len(allocations) == 0 {
		return nil
	}
	return allocations[0].Get("@allocatedFraction").Raw()
}
