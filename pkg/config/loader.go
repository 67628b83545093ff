// Package config loads workflow documents from YAML, expands environment
// references, and validates the document shape before decoding.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/calimero-network/merobox/pkg/models"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in the raw
// document. An unset variable without a default expands to the empty string.
func ExpandEnv(doc string) string {
	return envRef.ReplaceAllStringFunc(doc, func(ref string) string {
		groups := envRef.FindStringSubmatch(ref)

		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}

		return groups[3]
	})
}

// Load reads, expands, schema-validates, and decodes one workflow document.
func Load(path string) (*models.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", path, err)
	}

	return Parse(ExpandEnv(string(raw)))
}

// Parse decodes an already-read workflow document.
func Parse(doc string) (*models.Workflow, error) {
	var generic any
	if err := yaml.Unmarshal([]byte(doc), &generic); err != nil {
		return nil, fmt.Errorf("parse workflow YAML: %w", err)
	}

	if err := validateSchema(normalizeKeys(generic)); err != nil {
		return nil, err
	}

	var wf models.Workflow
	if err := yaml.Unmarshal([]byte(doc), &wf); err != nil {
		return nil, fmt.Errorf("decode workflow: %w", err)
	}

	if wf.Name == "" {
		return nil, fmt.Errorf("workflow document has no name")
	}

	return &wf, nil
}

func validateSchema(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(workflowSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate workflow: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, resultError := range result.Errors() {
			errors = append(errors, resultError.String())
		}

		return fmt.Errorf("workflow schema validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// normalizeKeys rewrites yaml.v3's map[any]any maps into map[string]any so
// the schema loader can walk them.
func normalizeKeys(v any) any {
	switch m := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[fmt.Sprintf("%v", k)] = normalizeKeys(item)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = normalizeKeys(item)
		}

		return out
	case []any:
		out := make([]any, len(m))
		for i, item := range m {
			out[i] = normalizeKeys(item)
		}

		return out
	default:
		return v
	}
}
