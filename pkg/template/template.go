// Package template resolves {{...}} placeholders in step configuration
// against captured step results and exported dynamic values.
package template

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
)

// Resolver renders placeholder expressions. A whole-string placeholder
// resolves to the looked-up value with its native type preserved; a
// placeholder embedded in a longer string is stringified in place.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver() *Resolver {
	return &Resolver{logger: log.WithModule("template")}
}

// Resolve walks an arbitrary config value and resolves every string in it.
// Maps and slices are rebuilt; map keys are resolved too, so computed result
// keys like "call_{{iteration}}" work.
func (r *Resolver) Resolve(
	value any,
	results models.WorkflowResults,
	values models.DynamicValues,
	scope *models.Scope,
) any {
	switch v := value.(type) {
	case string:
		return r.ResolveString(v, results, values, scope)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			key := fmt.Sprintf("%v", r.ResolveString(k, results, values, scope))
			out[key] = r.Resolve(item, results, values, scope)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = r.Resolve(item, results, values, scope)
		}

		return out
	default:
		return value
	}
}

// ResolveString resolves one string value.
//
// Quoted literals without placeholders lose their quotes, so assertion
// configs can force string comparison. A string that is exactly one
// placeholder returns the native value; otherwise each placeholder is
// replaced by its string form. Unresolvable placeholders stay literal.
func (r *Resolver) ResolveString(
	s string,
	results models.WorkflowResults,
	values models.DynamicValues,
	scope *models.Scope,
) any {
	if len(s) >= 2 && !strings.Contains(s, "{{") {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}

	if !strings.Contains(s, "{{") || !strings.Contains(s, "}}") {
		return s
	}

	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		inner := strings.TrimSpace(s[2 : len(s)-2])
		if !strings.Contains(inner, "{{") {
			resolved, ok := r.resolveExpr(inner, results, values, scope)
			if !ok {
				r.logger.Warn("placeholder not resolved, keeping literal", "placeholder", inner)

				return s
			}

			return resolved
		}
	}

	var b strings.Builder

	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)

			break
		}

		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)

			break
		}

		end += start
		b.WriteString(rest[:start])

		inner := strings.TrimSpace(rest[start+2 : end])

		resolved, ok := r.resolveExpr(inner, results, values, scope)
		if !ok {
			r.logger.Warn("placeholder not resolved, keeping literal", "placeholder", inner)
			b.WriteString(rest[start : end+2])
		} else {
			b.WriteString(fmt.Sprintf("%v", resolved))
		}

		rest = rest[end+2:]
	}

	return b.String()
}

// resolveExpr evaluates one placeholder expression, without braces.
// Lookup order: iteration/local scope, global scope, dynamic values, then
// the typed result prefixes.
func (r *Resolver) resolveExpr(
	expr string,
	results models.WorkflowResults,
	values models.DynamicValues,
	scope *models.Scope,
) (any, bool) {
	if v, ok := scope.Lookup(expr); ok {
		return v, true
	}

	if v, ok := values[expr]; ok {
		return v, true
	}

	switch {
	case strings.HasPrefix(expr, "install."):
		return r.resolveInstall(expr[len("install."):], results, values)
	case strings.HasPrefix(expr, "context."):
		return r.resolveContext(expr[len("context."):], results, values)
	case strings.HasPrefix(expr, "identity."):
		return r.resolveIdentity(expr[len("identity."):], results)
	case strings.HasPrefix(expr, "invite."):
		return r.resolveInvite(expr[len("invite."):], results, values, scope)
	}

	return nil, false
}

// resolveInstall handles install.<node>: the captured application ID if a
// step exported one, otherwise the id field chain of the raw install result.
func (r *Resolver) resolveInstall(node string, results models.WorkflowResults, values models.DynamicValues) (any, bool) {
	if v, ok := values["app_id_"+node]; ok {
		return v, true
	}

	raw, ok := results.Lookup("install_" + node)
	if !ok {
		return nil, false
	}

	return firstField(raw, "id", "applicationId", "name")
}

// resolveContext handles context.<node> and context.<node>.<field>.
func (r *Resolver) resolveContext(rest string, results models.WorkflowResults, values models.DynamicValues) (any, bool) {
	node, field, hasField := strings.Cut(rest, ".")

	if hasField {
		raw, ok := results.Lookup("context_" + node)
		if !ok {
			return nil, false
		}

		data := unwrapData(raw)
		if m, ok := data.(map[string]any); ok {
			if v, ok := m[field]; ok {
				return v, true
			}
		}

		return nil, false
	}

	if v, ok := values["context_id_"+node]; ok {
		return v, true
	}

	raw, ok := results.Lookup("context_" + node)
	if !ok {
		return nil, false
	}

	return firstField(unwrapData(raw), "id", "contextId", "name")
}

// resolveIdentity handles identity.<node>: the public key of a created
// identity.
func (r *Resolver) resolveIdentity(node string, results models.WorkflowResults) (any, bool) {
	raw, ok := results.Lookup("identity_" + node)
	if !ok {
		return nil, false
	}

	return firstField(unwrapData(raw), "publicKey", "id", "name")
}

// resolveInvite handles invite.<inviter>_identity.<invitee>: the invitee's
// identity is resolved first, then keys the stored invitation payload.
func (r *Resolver) resolveInvite(
	rest string,
	results models.WorkflowResults,
	values models.DynamicValues,
	scope *models.Scope,
) (any, bool) {
	inviter, invitee, ok := strings.Cut(rest, "_identity.")
	if !ok {
		return nil, false
	}

	identity, ok := r.resolveIdentity(invitee, results)
	if !ok {
		return nil, false
	}

	raw, ok := results.Lookup(fmt.Sprintf("invite_%s_%v", inviter, identity))
	if !ok {
		return nil, false
	}

	return firstField(unwrapData(raw), "invitation", "id", "name")
}

// unwrapData peels a single {"data": ...} envelope level if present.
func unwrapData(v any) any {
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["data"]; ok {
			return inner
		}
	}

	return v
}

// firstField returns the first present field from a map result; non-map
// results are stringified as-is.
func firstField(v any, fields ...string) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", v), true
	}

	for _, f := range fields {
		if val, ok := m[f]; ok {
			return val, true
		}
	}

	return nil, false
}
