package common

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Snapshot is the flattened, cross-referenced export of a lifecycle model.
// It is the payload sent to the LCIA solver and the input of the label
// resolver.
//
// A snapshot contains:
//   - Model: metadata of the exported lifecycle model
//   - Processes and their Exchanges
//   - Flows referenced by exchanges and links
//   - FlowProperties, UnitGroups and Units needed to express flow quantities
//   - Links: provider -> consumer wiring between process instances
//
// A snapshot is never mutated after it has been assembled.
type Snapshot struct {
	Model          Model          `json:"model"`
	Processes      []Process      `json:"processes"`
	Flows          []Flow         `json:"flows"`
	Exchanges      []Exchange     `json:"exchanges"`
	FlowProperties []FlowProperty `json:"flow_properties"`
	UnitGroups     []UnitGroup    `json:"unit_groups"`
	Units          []Unit         `json:"units"`
	Links          []Link         `json:"links"`
}

// Model describes the exported lifecycle model.
type Model struct {
	ModelID       string  `json:"model_id"`
	ModelUUID     *string `json:"model_uuid"`
	ModelName     *string `json:"model_name"`
	ExportTime    string  `json:"export_time"`
	Commit        *string `json:"tiangong_commit"`
	SchemaVersion *string `json:"schema_version"`
}

// Process is a unit process referenced by at least one process instance of
// the model.
type Process struct {
	ProcessUUID              string  `json:"process_uuid"`
	ProcessName              *string `json:"process_name"`
	ReferenceProductFlowUUID *string `json:"reference_product_flow_uuid"`
}

// Exchange is the measured input or output quantity of a flow for a
// process. AllocationFraction keeps the raw document value, which is either
// a bare number or a percentage string such as "10%".
type Exchange struct {
	ExchangeID         *string         `json:"exchange_id"`
	ProcessUUID        string          `json:"process_uuid"`
	FlowUUID           *string         `json:"flow_uuid"`
	Direction          *string         `json:"direction"`
	Amount             float64         `json:"amount"`
	IsReferenceProduct bool            `json:"is_reference_product"`
	AllocationFraction json.RawMessage `json:"allocation_fraction"`
}

type Flow struct {
	FlowUUID        string  `json:"flow_uuid"`
	FlowName        *string `json:"flow_name"`
	FlowType        *string `json:"flow_type"`
	DefaultUnitUUID *string `json:"default_unit_uuid"`
	UnitGroupUUID   *string `json:"unit_group_uuid"`
}

type FlowProperty struct {
	FlowPropertyUUID string  `json:"flow_property_uuid"`
	FlowPropertyName *string `json:"flow_property_name"`
	UnitGroupUUID    *string `json:"unit_group_uuid"`
}

type UnitGroup struct {
	UnitGroupUUID     string  `json:"unit_group_uuid"`
	UnitGroupName     *string `json:"unit_group_name"`
	ReferenceUnitUUID *string `json:"reference_unit_uuid"`
}

// Unit belongs to exactly one unit group. Its id is the unit's internal id
// inside the unit group document.
type Unit struct {
	UnitUUID                    string   `json:"unit_uuid"`
	UnitName                    string   `json:"unit_name"`
	UnitGroupUUID               string   `json:"unit_group_uuid"`
	ConversionFactorToReference *float64 `json:"conversion_factor_to_reference"`
}

// Link connects a providing process to a consuming process.
type Link struct {
	ConsumerProcessUUID string  `json:"consumer_process_uuid"`
	ProviderProcessUUID string  `json:"provider_process_uuid"`
	FlowUUID            *string `json:"flow_uuid"`
}

// SolverRequest is the body posted to the LCIA solver.
type SolverRequest struct {
	Snapshot *Snapshot `json:"snapshot"`
}

// SolverResult is the indicator-by-process matrix returned by the solver.
// Values[i][j] is the result of indicator IndicatorIndex[i] for process
// ProcessIndex[j].
type SolverResult struct {
	IndicatorIndex []Indicator `json:"indicator_index"`
	ProcessIndex   []string    `json:"process_index"`
	Values         [][]float64 `json:"values"`
	MMRPath        *string     `json:"mmr_path,omitempty"`
	Issues         []string    `json:"issues,omitempty"`
}

// Indicator is an entry of the solver's indicator index. The solver may
// send either numbers or strings; both are kept as their literal text.
type Indicator string

func (i *Indicator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Indicator(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = Indicator(n.String())
	return nil
}

// Index returns the indicator as a table index when its text is an integral
// number.
func (i Indicator) Index() (int, bool) {
	text := strings.TrimSpace(string(i))
	if text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
