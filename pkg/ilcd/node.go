// Package ilcd normalizes the XML-derived JSON documents of the ILCD
// dataset family (lifecycle models, processes, flows, flow properties and
// unit groups).
//
// The documents follow XML conversion conventions: attributes are keys
// prefixed with "@", element text is stored under "#text", repeated
// elements may appear either as a single object or as an array, and values
// are sometimes wrapped as {"value": ...} or {"@value": ...}. Node hides all
// of these shapes so that callers only deal with semantic values.
package ilcd

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Node is a read-only view of a position in a parsed document. The zero
// Node does not exist and every accessor on it returns an empty result.
type Node struct {
	r gjson.Result
}

// Exists reports whether the node is present and not JSON null.
func (n Node) Exists() bool {
	return n.r.Exists() && n.r.Type != gjson.Null
}

// Get walks the given keys literally. Keys may contain characters that have
// a meaning in gjson paths ("@", "#", ":", "."), they are escaped here.
func (n Node) Get(keys ...string) Node {
	r := n.r
	for _, key := range keys {
		if !r.IsObject() {
			return Node{}
		}
		r = r.Get(escapeKey(key))
	}
	return Node{r: r}
}

// List returns the node as a list of elements: arrays are expanded, a
// single object becomes a one-element list and missing nodes yield nil.
func (n Node) List() []Node {
	if !n.Exists() {
		return nil
	}
	if !n.r.IsArray() {
		return []Node{n}
	}
	items := n.r.Array()
	out := make([]Node, 0, len(items))
	for _, item := range items {
		out = append(out, Node{r: item})
	}
	return out
}

// Value unwraps a {"value": x} or {"@value": x} wrapper. Other nodes are
// returned unchanged.
func (n Node) Value() Node {
	if !n.r.IsObject() {
		return n
	}
	if v := n.r.Get("value"); v.Exists() {
		return Node{r: v}
	}
	if v := n.r.Get(`\@value`); v.Exists() {
		return Node{r: v}
	}
	return n
}

// Attr returns the scalar text of an attribute-like node after unwrapping
// value wrappers. Numbers keep their literal representation so that ids
// such as 0 compare equal to "0".
func (n Node) Attr() (string, bool) {
	v := n.Value()
	switch v.r.Type {
	case gjson.String:
		return v.r.Str, true
	case gjson.Number:
		return v.r.Raw, true
	case gjson.True, gjson.False:
		return v.r.Raw, true
	default:
		return "", false
	}
}

// String is Attr without the presence flag.
func (n Node) String() string {
	s, _ := n.Attr()
	return s
}

// Number returns the node as a finite number. Strings are parsed after
// trimming surrounding space; empty strings, NaN and infinities are
// rejected.
func (n Node) Number() (float64, bool) {
	v := n.Value()
	var f float64
	switch v.r.Type {
	case gjson.Number:
		f = v.r.Num
	case gjson.String:
		text := strings.TrimSpace(v.r.Str)
		if text == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Truthy follows the loose flag conventions of the source documents: true,
// non-zero numbers, non-empty strings other than "false", and any object or
// array count as set.
func (n Node) Truthy() bool {
	switch n.r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return n.r.Num != 0
	case gjson.String:
		return n.r.Str != "" && !strings.EqualFold(n.r.Str, "false")
	case gjson.JSON:
		return true
	default:
		return false
	}
}

// IsTrue reports a strict boolean true.
func (n Node) IsTrue() bool {
	return n.r.Type == gjson.True
}

// Raw returns the raw JSON text of the node, or nil when it does not exist.
func (n Node) Raw() []byte {
	if !n.Exists() {
		return nil
	}
	return []byte(n.r.Raw)
}

// RefObjectID returns the "@refObjectId" of a global reference node.
func (n Node) RefObjectID() string {
	return n.Get("@refObjectId").String()
}

// RefVersion returns the "@version" of a global reference node.
func (n Node) RefVersion() string {
	return n.Get("@version").String()
}

func escapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 2)
	for _, r := range key {
		switch r {
		case '@', '#', '.', '*', '?', '|', '\\', '!', '=', '<', '>', '%', '[', ']', '{', '}', '(', ')', ',':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
