package steps

import (
	"strings"

	"github.com/calimero-network/merobox/pkg/template"
)

// setValue writes an exported value honoring scope prefixes. "local:" keys
// live until the enclosing iteration ends; "global:" keys go to the workflow
// scope; bare keys land in the flat dynamic values table.
func setValue(state *State, key string, v any) {
	switch {
	case strings.HasPrefix(key, "local:"):
		state.Scope.Local[strings.TrimPrefix(key, "local:")] = v
	case strings.HasPrefix(key, "global:"):
		state.Scope.Global[strings.TrimPrefix(key, "global:")] = v
	default:
		state.Values[key] = v
	}
}

// exportOutputs applies a step's outputs mapping to its response payload.
//
// Each entry is either a plain field or dotted path into the payload, or a
// mapping with "field" plus optional "json" (parse the field before
// extraction), "path" (dotted path within the field), and "target" (export
// key, with {node_name} substitution). Keys in protected are never
// overwritten.
func (b *base) exportOutputs(state *State, payload map[string]any, nodeName string, protected map[string]struct{}) {
	rawOutputs, ok := b.spec.Config["outputs"].(map[string]any)
	if !ok || len(rawOutputs) == 0 {
		return
	}

	data := outputData(payload)
	logger := b.logger()

	for exportKey, rule := range rawOutputs {
		var (
			value  any
			target = exportKey
			found  bool
		)

		switch rule := rule.(type) {
		case string:
			if strings.Contains(rule, ".") {
				value = template.ExtractPath(data, rule)
				found = value != nil
			} else if m, ok := data.(map[string]any); ok {
				value, found = m[rule]
				if s, ok := value.(string); ok {
					value = template.ParseLoose(s)
				}
			}

			if !found {
				logger.Warn("output field not found in response", "field", rule, "export", exportKey)

				continue
			}

		case map[string]any:
			field, ok := rule["field"].(string)
			if !ok {
				logger.Warn("invalid output rule, missing field", "export", exportKey)

				continue
			}

			if m, ok := data.(map[string]any); ok {
				value, found = m[field]
			}

			if parse, _ := rule["json"].(bool); parse {
				value = template.ParseLoose(value)
			}

			if path, ok := rule["path"].(string); ok && path != "" {
				value = template.ExtractPath(value, path)
				found = value != nil
			}

			if !found {
				logger.Warn("output field not found in response", "field", field, "export", exportKey)

				continue
			}

			if t, ok := rule["target"].(string); ok && t != "" {
				target = t
			}

		default:
			logger.Warn("invalid output rule, expected string or mapping", "export", exportKey)

			continue
		}

		target = strings.ReplaceAll(target, "{node_name}", nodeName)

		if _, isProtected := protected[target]; isProtected {
			logger.Warn("skipped export to protected key", "key", target)

			continue
		}

		setValue(state, target, value)
		logger.Debug("exported output", "key", target)
	}
}

// outputData strips the data envelope unless the payload is error
// diagnostics, which export their fields from the top level.
func outputData(payload map[string]any) any {
	if success, ok := payload["success"].(bool); ok && !success {
		for _, k := range []string{"error_code", "error_type", "error_message"} {
			if _, ok := payload[k]; ok {
				return payload
			}
		}
	}

	if inner, ok := payload["data"]; ok {
		return inner
	}

	return payload
}
