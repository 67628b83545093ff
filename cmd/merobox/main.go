package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/calimero-network/merobox/pkg/client"
	"github.com/calimero-network/merobox/pkg/config"
	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/resolver"
	"github.com/calimero-network/merobox/pkg/runtime/docker"
	"github.com/calimero-network/merobox/pkg/steps"
	"github.com/calimero-network/merobox/pkg/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:                  "merobox",
		EnableShellCompletion: true,
		Usage:                 "Run workflows against Calimero nodes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			validateCommand(),
			stopCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow file",
		ArgsUsage: "<workflow.yml>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-nesting",
				Usage:   "Maximum depth for nested run_workflow steps",
				Value:   steps.DefaultMaxNesting,
				Sources: cli.EnvVars("MEROBOX_MAX_NESTING"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("usage: merobox run <workflow.yml>")
			}

			def, err := config.Load(path)
			if err != nil {
				return err
			}

			executor, err := buildExecutor(def)
			if err != nil {
				return err
			}

			executor.WithMaxNesting(int(command.Int("max-nesting")))

			report, err := executor.Execute(ctx, def)
			if report != nil {
				printReport(report)
			}

			return err
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check a workflow file without running it",
		ArgsUsage: "<workflow.yml>",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			path := command.Args().First()
			if path == "" {
				return fmt.Errorf("usage: merobox validate <workflow.yml>")
			}

			def, err := config.Load(path)
			if err != nil {
				return err
			}

			env := &steps.Env{MaxNesting: steps.DefaultMaxNesting, Defaults: def.Nodes}
			for _, spec := range def.Steps {
				if _, err := steps.New(spec, env); err != nil {
					return err
				}
			}

			fmt.Printf("%s: valid (%d steps, %d nodes)\n", def.Name, len(def.Steps), len(def.Nodes.NodeNames()))

			return nil
		},
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop every node container this tool manages",
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			runtime, err := docker.NewRuntime()
			if err != nil {
				return err
			}

			return runtime.StopAll(ctx)
		},
	}
}

func buildExecutor(def *models.Workflow) (*workflow.Executor, error) {
	runtime, err := docker.NewRuntime()
	if err != nil {
		return nil, err
	}

	nodes := resolver.New(runtime, def.RemoteNodes)
	tokens := resolver.NewTokenCache(def.RemoteNodes)
	clients := client.NewFactory(tokens)

	return workflow.NewExecutor(runtime, nodes, clients), nil
}

func printReport(report *models.Report) {
	status := "FAILED"
	if report.Success {
		status = "OK"
	}

	fmt.Printf("\nWorkflow %s\n", status)

	for _, name := range report.Nodes {
		if endpoint, ok := report.Endpoints[name]; ok {
			fmt.Printf("  %s  %s\n", name, endpoint)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
}
