package snapshot

import (
	"context"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/metrics"
)

// modelStage is the outcome of loading the root lifecycle model.
type modelStage struct {
	model       common.Model
	processRefs []dataset.Ref
	links       []common.Link
}

func (b *Builder) loadModel(ctx context.Context, modelID, version string) (*modelStage, error) {
	d, err := b.client.GetLifeCycleModelDetail(ctx, modelID, version)
	if err != nil {
		metrics.RecordFetch(string(dataset.KindLifeCycleModel), false)
		return nil, &LoadError{ModelID: modelID, Version: version, Err: err}
	}
	doc, err := ilcd.Parse(d.JSON)
	if err != nil {
		metrics.RecordFetch(string(dataset.KindLifeCycleModel), false)
		return nil, &LoadError{ModelID: modelID, Version: version, Err: err}
	}
	metrics.RecordFetch(string(dataset.KindLifeCycleModel), true)

	dataSet := doc.Get("lifeCycleModelDataSet")
	info := dataSet.Get("lifeCycleModelInformation")
	instances := info.Get("technology", "processes", "processInstance").List()

	processRefs := newRefSet()
	internalToUUID := make(map[string]string, len(instances))
	for _, instance := range instances {
		ref := instance.Get("referenceToProcess")
		processID := ref.RefObjectID()
		if processID == "" {
			continue
		}
		processRefs.add(processID, ref.RefVersion())
		if internalID := instanceInternalID(instance); internalID != "" {
			internalToUUID[internalID] = processID
		}
	}

	dataSetInfo := info.Get("dataSetInformation")
	return &modelStage{
		model: common.Model{
			ModelID:       modelID,
			ModelUUID:     common.StringPtr(dataSetInfo.Get("common:UUID").String()),
			ModelName:     dataSetInfo.Get("name").TextPtr(),
			SchemaVersion: common.StringPtr(dataSet.Get("@version").String()),
		},
		processRefs: processRefs.list(),
		links:       resolveLinks(instances, internalToUUID),
	}, nil
}

// resolveLinks derives provider -> consumer links from the output exchange
// connections of each process instance. Connections whose downstream
// instance cannot be resolved are dropped, as draft models are often only
// partially wired.
func resolveLinks(instances []ilcd.Node, internalToUUID map[string]string) []common.Link {
	links := make([]common.Link, 0)
	for _, instance := range instances {
		providerID := instance.Get("referenceToProcess").RefObjectID()
		if providerID == "" {
			continue
		}
		for _, output := range instance.Get("connections", "outputExchange").List() {
			flowID := common.StringPtr(output.Get("@flowUUID").String())
			for _, downstream := range output.Get("downstreamProcess").List() {
				downstreamID := downstreamInternalID(downstream)
				if downstreamID == "" {
					continue
				}
				consumerID, ok := internalToUUID[downstreamID]
				if !ok {
					continue
				}
				links = append(links, common.Link{
					ConsumerProcessUUID: consumerID,
					ProviderProcessUUID: providerID,
					FlowUUID:            flowID,
				})
			}
		}
	}
	return links
}

func instanceInternalID(instance ilcd.Node) string {
	if id, ok := instance.Get("@dataSetInternalID").Attr(); ok {
		return id
	}
	return instance.Get("@id").String()
}

func downstreamInternalID(downstream ilcd.Node) string {
	if id, ok := downstream.Get("@id").Attr(); ok {
		return id
	}
	return downstream.Get("@dataSetInternalID").String()
}
