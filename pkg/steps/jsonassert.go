package steps

import (
	"context"
	"fmt"
	"reflect"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/template"
)

// JSONAssertStep deep-compares a resolved value against an expected JSON
// document. Both sides go through loose parsing first, so double-encoded or
// Python-flavored payloads compare structurally rather than textually.
type JSONAssertStep struct {
	base
	config jsonAssertConfig
}

type jsonAssertConfig struct {
	Actual   string `config:"actual"   validate:"required"`
	Expected string `config:"expected" validate:"required"`

	// IgnoreFields lists dotted paths removed from both sides before the
	// comparison, for volatile members like timestamps.
	IgnoreFields []string `config:"ignore_fields"`
}

func NewJSONAssertStep(spec models.StepSpec, env *Env) (*JSONAssertStep, error) {
	s := &JSONAssertStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *JSONAssertStep) Execute(ctx context.Context, state *State) error {
	actual := template.ParseLoose(s.resolve(state, s.config.Actual))
	expected := template.ParseLoose(s.resolve(state, s.config.Expected))

	for _, path := range s.config.IgnoreFields {
		actual = prunePath(actual, path)
		expected = prunePath(expected, path)
	}

	if !reflect.DeepEqual(normalizeNumbers(actual), normalizeNumbers(expected)) {
		return &ExecutionError{
			Step: s.Name(),
			Kind: s.Kind(),
			Err:  fmt.Errorf("json assertion failed: actual %v, expected %v", actual, expected),
		}
	}

	return nil
}

// prunePath removes one dotted path from a nested structure, leaving the
// rest untouched.
func prunePath(v any, path string) any {
	m, ok := v.(map[string]any)
	if !ok || path == "" {
		return v
	}

	head, rest, nested := splitPath(path)

	if !nested {
		delete(m, head)

		return m
	}

	if child, ok := m[head]; ok {
		m[head] = prunePath(child, rest)
	}

	return m
}

func splitPath(path string) (head, rest string, nested bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:], true
		}
	}

	return path, "", false
}

// normalizeNumbers coerces every numeric leaf to float64 so decoded JSON
// and resolver-native ints compare equal.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalizeNumbers(item)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeNumbers(item)
		}

		return out
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

var _ Step = (*JSONAssertStep)(nil)
