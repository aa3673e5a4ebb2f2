package ilcd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"
)

var ErrNotDocument = errors.New("dataset payload is not a JSON object")

// Parse turns a stored dataset payload into a Node. Editors upstream have
// been seen storing documents as double-encoded JSON strings and, rarely,
// with small syntax defects; both are accepted. The result must be a JSON
// object.
func Parse(raw []byte) (Node, error) {
	return parse(raw, true)
}

func parse(raw []byte, unwrap bool) (Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Node{}, ErrNotDocument
	}

	if !gjson.ValidBytes(raw) {
		repaired, err := jsonrepair.JSONRepair(string(raw))
		if err != nil {
			return Node{}, fmt.Errorf("failed to repair dataset payload: %w", err)
		}
		raw = []byte(repaired)
	}

	r := gjson.ParseBytes(raw)
	if r.Type == gjson.String && unwrap {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Node{}, fmt.Errorf("failed to decode dataset payload: %w", err)
		}
		return parse([]byte(inner), false)
	}
	if !r.IsObject() {
		return Node{}, ErrNotDocument
	}
	return Node{r: r}, nil
}

