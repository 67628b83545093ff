package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/calimero-network/merobox/pkg/models"
)

// AssertStep evaluates assertion statements against resolved values.
// Supported forms, after placeholder resolution:
//
//	left == right
//	left != right
//	left contains right
//	value is_set
//
// Operands are compared numerically when both parse as numbers, otherwise
// as strings. Any failed statement fails the step.
type AssertStep struct {
	base
	config assertConfig
}

type assertConfig struct {
	Statements []string `config:"statements" validate:"required,min=1"`
}

func NewAssertStep(spec models.StepSpec, env *Env) (*AssertStep, error) {
	s := &AssertStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *AssertStep) Execute(ctx context.Context, state *State) error {
	for _, statement := range s.config.Statements {
		if err := s.evaluate(state, statement); err != nil {
			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
		}

		s.logger().Debug("assertion passed", "statement", statement)
	}

	return nil
}

func (s *AssertStep) evaluate(state *State, statement string) error {
	for _, op := range []string{"==", "!=", "contains"} {
		left, right, found := strings.Cut(statement, " "+op+" ")
		if !found {
			continue
		}

		lv := s.resolveString(state, strings.TrimSpace(left))
		rv := s.resolveString(state, strings.TrimSpace(right))

		switch op {
		case "==":
			if !looseEqual(lv, rv) {
				return fmt.Errorf("assertion failed: %q == %q (statement: %s)", lv, rv, statement)
			}
		case "!=":
			if looseEqual(lv, rv) {
				return fmt.Errorf("assertion failed: %q != %q (statement: %s)", lv, rv, statement)
			}
		case "contains":
			if !strings.Contains(lv, rv) {
				return fmt.Errorf("assertion failed: %q does not contain %q (statement: %s)", lv, rv, statement)
			}
		}

		return nil
	}

	if expr, found := strings.CutSuffix(statement, " is_set"); found {
		trimmed := strings.TrimSpace(expr)

		resolved := s.resolveString(state, trimmed)
		if resolved == "" || resolved == trimmed && strings.Contains(trimmed, "{{") {
			return fmt.Errorf("assertion failed: %q is not set", trimmed)
		}

		return nil
	}

	return fmt.Errorf("invalid assertion statement: %s", statement)
}

// looseEqual compares numerically when both sides parse as numbers, so
// "5" equals "5.0", and falls back to string equality.
func looseEqual(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)

	if errA == nil && errB == nil {
		return fa == fb
	}

	return a == b
}

var _ Step = (*AssertStep)(nil)
