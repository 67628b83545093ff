// Package script embeds a JavaScript engine for workflow script steps.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"

	"github.com/calimero-network/merobox/pkg/log"
)

// Engine runs one script invocation. Scripts see the workflow's dynamic
// values as the global `vars` object and hand values back through
// `setOutput(name, value)`. `export` is a reserved word in ECMAScript, so
// the binding cannot carry that name.
type Engine struct {
	runtime *goja.Runtime
	exports map[string]any
	logger  *slog.Logger
}

func New() *Engine {
	e := &Engine{
		runtime: goja.New(),
		exports: make(map[string]any),
		logger:  log.WithModule("script"),
	}

	e.setupBuiltins()

	return e
}

func (e *Engine) setupBuiltins() {
	console := e.runtime.NewObject()

	logFunc := func(level slog.Level) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}

			e.logger.Log(context.Background(), level, strings.Join(parts, " "))

			return goja.Undefined()
		}
	}

	_ = console.Set("log", logFunc(slog.LevelInfo))
	_ = console.Set("warn", logFunc(slog.LevelWarn))
	_ = console.Set("error", logFunc(slog.LevelError))
	_ = e.runtime.Set("console", console)

	_ = e.runtime.Set("setOutput", func(name string, value goja.Value) {
		e.exports[name] = value.Export()
	})
}

// SetVariable exposes one value to the script before it runs.
func (e *Engine) SetVariable(name string, value any) error {
	return e.runtime.Set(name, value)
}

// Run executes the script source. Cancellation of ctx interrupts the VM.
func (e *Engine) Run(ctx context.Context, source string) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			e.runtime.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := e.runtime.RunString(source); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return fmt.Errorf("script interrupted: %w", ctx.Err())
		}

		return fmt.Errorf("script failed: %w", err)
	}

	return nil
}

// Exports returns the values the script handed back through setOutput().
func (e *Engine) Exports() map[string]any {
	return e.exports
}
