package ilcd

import "github.com/tidwall/gjson"

// preferredLanguages lists the xml:lang values picked first, in order.
var preferredLanguages = [][]string{
	{"zh", "zh-CN", "zh-cn"},
	{"en"},
}

// Text resolves a human-readable name. It accepts a bare string, a list of
// {"@xml:lang", "#text"} entries, a single such entry, or a wrapper keyed by
// "value", "baseName" or "common:name".
func (n Node) Text() (string, bool) {
	if !n.Exists() {
		return "", false
	}
	switch n.r.Type {
	case gjson.String:
		return n.r.Str, n.r.Str != ""
	case gjson.JSON:
	default:
		return "", false
	}
	if n.r.IsArray() {
		return pickLangText(n.List())
	}
	if text := n.Get("#text"); text.r.Type == gjson.String && text.r.Str != "" {
		return text.r.Str, true
	}
	for _, key := range []string{"value", "baseName", "common:name"} {
		if child := n.Get(key); child.Truthy() {
			return child.Text()
		}
	}
	return "", false
}

// TextPtr is Text returning nil when no text is available.
func (n Node) TextPtr() *string {
	s, ok := n.Text()
	if !ok {
		return nil
	}
	return &s
}

func pickLangText(entries []Node) (string, bool) {
	type langText struct {
		text string
		lang string
	}
	candidates := make([]langText, 0, len(entries))
	for _, entry := range entries {
		text := entry.Get("#text")
		if text.r.Type != gjson.String || text.r.Str == "" {
			continue
		}
		candidates = append(candidates, langText{
			text: text.r.Str,
			lang: entry.Get("@xml:lang").String(),
		})
	}
	if len(candidates) == 0 {
		return "", false
	}
	for _, langs := range preferredLanguages {
		for _, c := range candidates {
			for _, lang := range langs {
				if c.lang == lang {
					return c.text, true
				}
			}
		}
	}
	return candidates[0].text, true
}
