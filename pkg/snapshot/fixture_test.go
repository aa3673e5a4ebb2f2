package snapshot

import (
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/dataset/memory"
)

const modelDoc = `{
  "lifeCycleModelDataSet": {
    "@version": "1.1",
    "lifeCycleModelInformation": {
      "dataSetInformation": {
        "common:UUID": "model-uuid-1",
        "name": {"baseName": [{"@xml:lang": "en", "#text": "Test model"}]}
      },
      "technology": {
        "processes": {
          "processInstance": [
            {
              "@dataSetInternalID": "1",
              "referenceToProcess": {"@refObjectId": "proc-1", "@version": "01.00.000"},
              "connections": {
                "outputExchange": {
                  "@flowUUID": "flow-1",
                  "downstreamProcess": [{"@id": "2"}, {"@id": "99"}]
                }
              }
            },
            {
              "@dataSetInternalID": "2",
              "referenceToProcess": {"@refObjectId": "proc-2", "@version": "01.00.000"}
            }
          ]
        }
      }
    }
  }
}`

const proc1Doc = `{
  "processDataSet": {
    "processInformation": {
      "dataSetInformation": {
        "name": {"baseName": [
          {"@xml:lang": "de", "#text": "Prozess A"},
          {"@xml:lang": "en", "#text": "Process A"}
        ]}
      },
      "quantitativeReference": {"referenceToReferenceFlow": "flow-1"}
    },
    "exchanges": {
      "exchange": [
        {
          "@dataSetInternalID": "0",
          "referenceToFlowDataSet": {"@refObjectId": "flow-1", "@version": "01.00.000"},
          "exchangeDirection": "Output",
          "resultingAmount": 0,
          "meanAmount": 5,
          "allocations": {"allocation": {"@allocatedFraction": "100%"}}
        },
        {
          "@dataSetInternalID": "1",
          "referenceToFlowDataSet": {"@refObjectId": "flow-2"},
          "exchangeDirection": "Input",
          "resultingAmount": "3",
          "meanAmount": 7
        }
      ]
    }
  }
}`

const proc2Doc = `{
  "processDataSet": {
    "processInformation": {
      "dataSetInformation": {"name": {"baseName": {"@xml:lang": "en", "#text": "Process B"}}}
    },
    "exchanges": {
      "exchange": [
        {
          "@dataSetInternalID": "0",
          "referenceToFlowDataSet": {"@refObjectId": "flow-1"},
          "exchangeDirection": "Input",
          "meanAmount": "5"
        },
        {
          "@dataSetInternalID": "1",
          "referenceToFlowDataSet": {"@refObjectId": "flow-3"},
          "exchangeDirection": "Output",
          "quantitativeReference": true,
          "meanAmount": 1
        }
      ]
    }
  }
}`

// flow-1 has a single unmarked flow property.
const flow1Doc = `{
  "flowDataSet": {
    "flowInformation": {
      "dataSetInformation": {"name": {"baseName": {"@xml:lang": "en", "#text": "Steel"}}}
    },
    "modellingAndValidation": {"LCIMethod": {"typeOfDataSet": "Product flow"}},
    "flowProperties": {
      "flowProperty": {
        "@dataSetInternalID": "0",
        "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-mass", "@version": "03.00.003"}
      }
    }
  }
}`

// flow-2 declares its reference flow property by internal id.
const flow2Doc = `{
  "flowDataSet": {
    "flowInformation": {
      "dataSetInformation": {"name": {"baseName": {"@xml:lang": "en", "#text": "Water"}}},
      "quantitativeReference": {"referenceToReferenceFlowProperty": "1"}
    },
    "modellingAndValidation": {"LCIMethod": {"typeOfDataSet": "Elementary flow"}},
    "flowProperties": {
      "flowProperty": [
        {"@dataSetInternalID": "0", "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-mass"}},
        {"@dataSetInternalID": "1", "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-vol"}},
        {"@dataSetInternalID": "2", "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-energy"}}
      ]
    }
  }
}`

// flow-3 has two unmarked properties that share one unit group.
const flow3Doc = `{
  "flowDataSet": {
    "flowInformation": {
      "dataSetInformation": {"name": {"baseName": {"@xml:lang": "en", "#text": "Slag"}}}
    },
    "flowProperties": {
      "flowProperty": [
        {"@dataSetInternalID": "0", "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-mass"}},
        {"@dataSetInternalID": "1", "referenceToFlowPropertyDataSet": {"@refObjectId": "fp-mass-alt"}}
      ]
    }
  }
}`

func flowPropertyDoc(name, unitGroupID string) string {
	return `{
  "flowPropertyDataSet": {
    "flowPropertiesInformation": {
      "dataSetInformation": {"common:name": {"@xml:lang": "en", "#text": "` + name + `"}},
      "quantitativeReference": {
        "referenceToReferenceUnitGroup": {"@refObjectId": "` + unitGroupID + `", "@version": "01.00.000"}
      }
    }
  }
}`
}

const unitGroupMassDoc = `{
  "unitGroupDataSet": {
    "unitGroupInformation": {
      "dataSetInformation": {"common:name": {"@xml:lang": "en", "#text": "Units of mass"}},
      "quantitativeReference": {"referenceToReferenceUnit": "0"}
    },
    "units": {
      "unit": [
        {"@dataSetInternalID": "0", "name": "kg", "meanValue": "1"},
        {"@dataSetInternalID": "1", "name": "g", "meanValue": 0.001}
      ]
    }
  }
}`

const unitGroupVolumeDoc = `{
  "unitGroupDataSet": {
    "unitGroupInformation": {
      "dataSetInformation": {"common:name": {"@xml:lang": "en", "#text": "Units of volume"}},
      "quantitativeReference": {"referenceToReferenceUnit": "0"}
    },
    "units": {"unit": {"@dataSetInternalID": "0", "name": "m3", "meanValue": "1"}}
  }
}`

const unitGroupEnergyDoc = `{
  "unitGroupDataSet": {
    "unitGroupInformation": {
      "dataSetInformation": {"common:name": {"@xml:lang": "en", "#text": "Units of energy"}},
      "quantitativeReference": {"referenceToReferenceUnit": "0"}
    },
    "units": {"unit": {"@dataSetInternalID": "0", "name": "MJ", "meanValue": "1"}}
  }
}`

// newFixture returns a client serving a two-process model:
//
//	proc-1 -(flow-1)-> proc-2
//
// flow-1 resolves its unit group through the single property fallback,
// flow-2 through its declared reference property and flow-3 through the
// unique candidate unit group.
func newFixture() *memory.Client {
	return memory.New().
		Put(dataset.KindLifeCycleModel, "model-1", "01.00.000", modelDoc).
		Put(dataset.KindProcess, "proc-1", "01.00.000", proc1Doc).
		Put(dataset.KindProcess, "proc-2", "01.00.000", proc2Doc).
		Put(dataset.KindFlow, "flow-1", "01.00.000", flow1Doc).
		Put(dataset.KindFlow, "flow-2", "01.00.000", flow2Doc).
		Put(dataset.KindFlow, "flow-3", "01.00.000", flow3Doc).
		Put(dataset.KindFlowProperty, "fp-mass", "03.00.003", flowPropertyDoc("Mass", "ug-mass")).
		Put(dataset.KindFlowProperty, "fp-mass-alt", "01.00.000", flowPropertyDoc("Mass (alt)", "ug-mass")).
		Put(dataset.KindFlowProperty, "fp-vol", "01.00.000", flowPropertyDoc("Volume", "ug-vol")).
		Put(dataset.KindFlowProperty, "fp-energy", "01.00.000", flowPropertyDoc("Net calorific value", "ug-energy")).
		Put(dataset.KindUnitGroup, "ug-mass", "01.00.000", unitGroupMassDoc).
		Put(dataset.KindUnitGroup, "ug-vol", "01.00.000", unitGroupVolumeDoc).
		Put(dataset.KindUnitGroup, "ug-energy", "01.00.000", unitGroupEnergyDoc)
}
