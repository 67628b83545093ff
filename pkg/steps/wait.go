package steps

import (
	"context"
	"time"

	"github.com/calimero-network/merobox/pkg/models"
)

// WaitStep pauses the workflow for a fixed duration. The wait is a
// suspension point: cancellation of the run context ends it early.
type WaitStep struct {
	base
	config waitConfig
}

type waitConfig struct {
	Seconds float64 `config:"seconds" validate:"required,gt=0"`
}

func NewWaitStep(spec models.StepSpec, env *Env) (*WaitStep, error) {
	s := &WaitStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *WaitStep) Execute(ctx context.Context, state *State) error {
	d := time.Duration(s.config.Seconds * float64(time.Second))
	s.logger().Info("waiting", "duration", d)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Step = (*WaitStep)(nil)
