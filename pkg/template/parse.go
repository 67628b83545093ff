package template

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// ParseLoose decodes a string that is supposed to carry structured data but
// may arrive mangled: double-encoded JSON, Python-style literals, trailing
// commas, or JSON buried inside log noise. Non-strings and strings that defy
// every strategy come back unchanged.
func ParseLoose(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return value
	}

	if v, err := decodeJSON(trimmed); err == nil {
		// Double-encoded payloads decode to a string carrying the real
		// structure; the inner text is strictly shorter, so recursion
		// terminates.
		if inner, ok := v.(string); ok {
			return ParseLoose(inner)
		}

		return v
	}

	if v, ok := parsePythonLiteral(trimmed); ok {
		return v
	}

	if strings.ContainsAny(trimmed, "{[") {
		cleaned := trailingComma.ReplaceAllString(trimmed, "$1")
		if v, err := decodeJSON(cleaned); err == nil {
			return v
		}

		if candidate := findJSONSubstring(trimmed); candidate != "" {
			if v, err := decodeJSON(candidate); err == nil {
				return v
			}
		}
	}

	return value
}

func decodeJSON(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}

	return v, nil
}

// parsePythonLiteral repairs payloads serialized by Python's repr: True,
// False, None, and single-quoted strings.
func parsePythonLiteral(s string) (any, bool) {
	switch s {
	case "True":
		return true, true
	case "False":
		return false, true
	case "None":
		return nil, true
	}

	if !strings.ContainsAny(s, "{['") {
		return nil, false
	}

	repaired := strings.NewReplacer(
		"True", "true",
		"False", "false",
		"None", "null",
		"'", `"`,
	).Replace(s)

	v, err := decodeJSON(repaired)
	if err != nil {
		return nil, false
	}

	return v, true
}

// findJSONSubstring returns the first balanced JSON object or array
// embedded in text, or "" when none closes.
func findJSONSubstring(text string) string {
	for pos := 0; pos < len(text); pos++ {
		opening := text[pos]
		if opening != '{' && opening != '[' {
			continue
		}

		closing := byte('}')
		if opening == '[' {
			closing = ']'
		}

		depth := 1
		for i := pos + 1; i < len(text); i++ {
			switch text[i] {
			case opening:
				depth++
			case closing:
				depth--
				if depth == 0 {
					return text[pos : i+1]
				}
			}
		}
	}

	return ""
}

// ExtractPath walks a dotted path through nested maps and lists, re-parsing
// string payloads at every hop. Numeric segments index into lists. A miss
// anywhere yields nil.
//
//	ExtractPath(obj, "result.items.0.id")
func ExtractPath(obj any, path string) any {
	if path == "" {
		return nil
	}

	current := obj
	for _, segment := range strings.Split(path, ".") {
		current = ParseLoose(current)

		if list, ok := current.([]any); ok {
			idx, isIndex := parseIndex(segment)
			if !isIndex || idx < 0 || idx >= len(list) {
				return nil
			}

			current = list[idx]

			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		v, ok := m[segment]
		if !ok {
			return nil
		}

		current = v
	}

	if _, ok := current.(string); ok {
		return ParseLoose(current)
	}

	return current
}

func parseIndex(segment string) (int, bool) {
	if segment == "" {
		return 0, false
	}

	n := 0
	for _, c := range segment {
		if c < '0' || c > '9' {
			return 0, false
		}

		n = n*10 + int(c-'0')
	}

	return n, true
}
