package snapshot

import (
	"testing"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/ilcd"
)

func nodes(t *testing.T, raw string) []ilcd.Node {
	t.Helper()
	doc, err := ilcd.Parse([]byte(`{"items": ` + raw + `}`))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc.Get("items").List()
}

func node(t *testing.T, raw string) ilcd.Node {
	t.Helper()
	doc, err := ilcd.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return doc
}

func TestExchangeAmount(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   float64
		wantOK bool
	}{
		{"ZeroResultingFallsBack", `{"resultingAmount": 0, "meanAmount": 5}`, 5, true},
		{"ResultingWins", `{"resultingAmount": 3, "meanAmount": 9}`, 3, true},
		{"ResultingString", `{"resultingAmount": " 2.5 ", "meanAmount": 9}`, 2.5, true},
		{"ResultingUnparsable", `{"resultingAmount": "abc", "meanAmount": 4}`, 4, true},
		{"OnlyMean", `{"meanAmount": "1e-3"}`, 0.001, true},
		{"ZeroMean", `{"resultingAmount": 0, "meanAmount": 0}`, 0, true},
		{"Missing", `{}`, 0, false},
		{"EmptyString", `{"meanAmount": ""}`, 0, false},
		{"NotFinite", `{"meanAmount": "NaN"}`, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := exchangeAmount(node(t, tc.in))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got != tc.want {
				t.Fatalf("amount = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectReferenceExchange(t *testing.T) {
	exchanges := `[
		{"@dataSetInternalID": "0", "referenceToFlowDataSet": {"@refObjectId": "a"}},
		{"@dataSetInternalID": "1", "referenceToFlowDataSet": {"@refObjectId": "b"}, "quantitativeReference": true},
		{"@dataSetInternalID": "2", "referenceToFlowDataSet": {"@refObjectId": "c"}, "quantitativeReference": "true"}
	]`

	tests := []struct {
		name     string
		declared string
		wantID   string
		wantOK   bool
	}{
		{"Declared", "a", "0", true},
		{"DeclaredUnknownUsesFlag", "z", "1", true},
		{"NoDeclarationUsesFirstFlag", "", "1", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectReferenceExchange(nodes(t, exchanges), tc.declared)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if id := got.Get("@dataSetInternalID").String(); id != tc.wantID {
				t.Fatalf("selected %q, want %q", id, tc.wantID)
			}
		})
	}

	if _, ok := selectReferenceExchange(nodes(t, `[{"referenceToFlowDataSet": {"@refObjectId": "a"}}]`), ""); ok {
		t.Fatal("expected no reference exchange")
	}
}

func TestSelectReferenceFlowProperty(t *testing.T) {
	tests := []struct {
		name        string
		entries     string
		declared    string
		hasDeclared bool
		wantID      string
		wantOK      bool
	}{
		{
			name:        "DeclaredInternalID",
			entries:     `[{"@dataSetInternalID": "0", "quantitativeReference": true, "id": "p0"}, {"@dataSetInternalID": "1", "id": "p1"}]`,
			declared:    "1",
			hasDeclared: true,
			wantID:      "p1",
			wantOK:      true,
		},
		{
			name:        "NumericInternalID",
			entries:     `[{"@dataSetInternalID": 0, "id": "p0"}, {"@dataSetInternalID": 1, "id": "p1"}]`,
			declared:    "0",
			hasDeclared: true,
			wantID:      "p0",
			wantOK:      true,
		},
		{
			name:    "Flagged",
			entries: `[{"@dataSetInternalID": "0", "id": "p0"}, {"@dataSetInternalID": "1", "quantitativeReference": true, "id": "p1"}]`,
			wantID:  "p1",
			wantOK:  true,
		},
		{
			name:    "FlagMustBeBoolean",
			entries: `[{"@dataSetInternalID": "0", "quantitativeReference": "true", "id": "p0"}, {"@dataSetInternalID": "1", "id": "p1"}]`,
			wantOK:  false,
		},
		{
			name:    "SingleEntry",
			entries: `{"@dataSetInternalID": "0", "id": "p0"}`,
			wantID:  "p0",
			wantOK:  true,
		},
		{
			name:    "Ambiguous",
			entries: `[{"id": "p0"}, {"id": "p1"}]`,
			wantOK:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectReferenceFlowProperty(nodes(t, tc.entries), tc.declared, tc.hasDeclared)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if id := got.Get("id").String(); id != tc.wantID {
				t.Fatalf("selected %q, want %q", id, tc.wantID)
			}
		})
	}
}

func TestSelectUnitGroup(t *testing.T) {
	byProperty := map[string]string{
		"mass":     "ug-mass",
		"mass-alt": "ug-mass",
		"volume":   "ug-vol",
	}

	tests := []struct {
		name       string
		reference  string
		candidates []string
		want       string
		wantOK     bool
	}{
		{"Reference", "volume", []string{"mass", "volume"}, "ug-vol", true},
		{"UnknownReferenceUsesCandidates", "energy", []string{"mass", "mass-alt"}, "ug-mass", true},
		{"UniqueCandidateGroup", "", []string{"mass", "mass-alt", "energy"}, "ug-mass", true},
		{"AmbiguousCandidates", "", []string{"mass", "volume"}, "", false},
		{"NoCandidates", "", nil, "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectUnitGroup(tc.reference, tc.candidates, byProperty)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("selectUnitGroup = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestResolveLinks(t *testing.T) {
	instances := nodes(t, `[
		{"@dataSetInternalID": "1", "referenceToProcess": {"@refObjectId": "p1"},
		 "connections": {"outputExchange": [
			{"@flowUUID": "f1", "downstreamProcess": {"@id": "2"}},
			{"@flowUUID": "f2", "downstreamProcess": [{"@dataSetInternalID": "3"}, {"@id": "404"}]}
		 ]}},
		{"@dataSetInternalID": "2", "referenceToProcess": {"@refObjectId": "p2"}},
		{"@id": "3", "referenceToProcess": {"@refObjectId": "p3"}},
		{"@dataSetInternalID": "4",
		 "connections": {"outputExchange": {"@flowUUID": "f9", "downstreamProcess": {"@id": "2"}}}}
	]`)
	internalToUUID := map[string]string{"1": "p1", "2": "p2", "3": "p3"}

	links := resolveLinks(instances, internalToUUID)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}
	if links[0].ConsumerProcessUUID != "p2" || *links[0].FlowUUID != "f1" {
		t.Fatalf("unexpected first link %+v", links[0])
	}
	if links[1].ConsumerProcessUUID != "p3" || links[1].ProviderProcessUUID != "p1" || *links[1].FlowUUID != "f2" {
		t.Fatalf("unexpected second link %+v", links[1])
	}
}

func TestParseProcessReferenceProduct(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		wantReference string
		wantFlagged   bool
	}{
		{
			name: "DeclaredMatchesExchange",
			doc: `{"processDataSet": {
				"processInformation": {"quantitativeReference": {"referenceToReferenceFlow": "flow-x"}},
				"exchanges": {"exchange": {"referenceToFlowDataSet": {"@refObjectId": "flow-x"}, "meanAmount": 1}}
			}}`,
			wantReference: "flow-x",
			wantFlagged:   true,
		},
		{
			name: "DeclaredWithoutMatch",
			doc: `{"processDataSet": {
				"processInformation": {"quantitativeReference": {"referenceToReferenceFlow": "0"}},
				"exchanges": {"exchange": {"@dataSetInternalID": "0", "referenceToFlowDataSet": {"@refObjectId": "flow-x"}, "meanAmount": 1}}
			}}`,
		},
		{
			name: "FlaggedExchange",
			doc: `{"processDataSet": {
				"processInformation": {"quantitativeReference": {"referenceToReferenceFlow": "0"}},
				"exchanges": {"exchange": {"referenceToFlowDataSet": {"@refObjectId": "flow-y"}, "quantitativeReference": "true", "meanAmount": 1}}
			}}`,
			wantReference: "flow-y",
			wantFlagged:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			process, exchanges, err := parseProcess("proc-1", node(t, tc.doc), newRefSet())
			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if tc.wantReference == "" {
				if process.ReferenceProductFlowUUID != nil {
					t.Fatalf("reference product = %q, want null", *process.ReferenceProductFlowUUID)
				}
			} else if common.Deref(process.ReferenceProductFlowUUID) != tc.wantReference {
				t.Fatalf("reference product = %v, want %q", process.ReferenceProductFlowUUID, tc.wantReference)
			}
			if len(exchanges) != 1 || exchanges[0].IsReferenceProduct != tc.wantFlagged {
				t.Fatalf("unexpected exchanges %+v", exchanges)
			}
		})
	}
}
