package report

import (
	"fmt"
	"os"
	"strconv"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"

	"github.com/tidwall/gjson"
)

// IndicatorTable maps a solver indicator index to its English method name.
type IndicatorTable map[int]string

// Name returns the table entry for a numeric indicator, else the indicator
// text unchanged.
func (t IndicatorTable) Name(indicator common.Indicator) string {
	if i, ok := indicator.Index(); ok {
		if name, ok := t[i]; ok && name != "" {
			return name
		}
	}
	return string(indicator)
}

// LoadIndicatorTable reads a table file. Three layouts are accepted:
//
//	{"0": "Acidification", "1": "Climate change"}
//	["Acidification", "Climate change"]
//	[{"index": 0, "method_en": "Acidification"}, ...]
func LoadIndicatorTable(path string) (IndicatorTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read indicator table: %w", err)
	}
	return ParseIndicatorTable(raw)
}

func ParseIndicatorTable(raw []byte) (IndicatorTable, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("indicator table is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	table := make(IndicatorTable)

	switch {
	case doc.IsObject():
		var parseErr error
		doc.ForEach(func(key, value gjson.Result) bool {
			i, err := strconv.Atoi(key.String())
			if err != nil {
				parseErr = fmt.Errorf("indicator table key %q is not an index", key.String())
				return false
			}
			table[i] = value.String()
			return true
		})
		if parseErr != nil {
			return nil, parseErr
		}
	case doc.IsArray():
		for i, item := range doc.Array() {
			if !item.IsObject() {
				table[i] = item.String()
				continue
			}
			index := i
			if v := item.Get("index"); v.Exists() {
				index = int(v.Int())
			}
			name := item.Get("method_en")
			if !name.Exists() {
				name = item.Get("name")
			}
			table[index] = name.String()
		}
	default:
		return nil, fmt.Errorf("indicator table must be a JSON object or array")
	}

	return table, nil
}
