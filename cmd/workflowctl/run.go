package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nodeforge/flowengine/internal/archive"
	"github.com/nodeforge/flowengine/internal/config"
	"github.com/nodeforge/flowengine/internal/engine"
	"github.com/nodeforge/flowengine/internal/graph"
	"github.com/nodeforge/flowengine/internal/logging"
	"github.com/nodeforge/flowengine/internal/state"
	"github.com/nodeforge/flowengine/internal/tui"
)

type runOptions struct {
	ConfigPath     string
	ExecutionID    string
	MaxParallelism int
	NonInteractive bool
	ArchivePath    string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a workflow definition to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.NonInteractive = opts.NonInteractive || !term.IsTerminal(int(os.Stdout.Fd()))
			return runWorkflow(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "file", "f", "", "path to the workflow definition YAML file")
	cmd.MarkFlagRequired("file") //nolint:errcheck
	cmd.Flags().StringVar(&opts.ExecutionID, "execution-id", "", "execution ID (generated if omitted)")
	cmd.Flags().IntVar(&opts.MaxParallelism, "max-parallelism", 4, "maximum number of nodes executing concurrently")
	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false, "disable the progress TUI and print plain log lines")
	cmd.Flags().StringVar(&opts.ArchivePath, "archive", "", "path to a sqlite archive database (in-memory if omitted)")

	return cmd
}

func runWorkflow(cmd *cobra.Command, root *rootFlags, opts runOptions) error {
	def, err := config.LoadWorkflowDefinition(opts.ConfigPath)
	if err != nil {
		return err
	}
	nodes, edges, err := config.ToGraph(def)
	if err != nil {
		return err
	}

	analysis, err := graph.Analyze(nodes, edges)
	if err != nil {
		return err
	}
	if !analysis.Valid {
		return fmt.Errorf("workflow %q failed validation: %v", def.Name, analysis.Errors)
	}

	executionID := opts.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}

	maxParallelism := opts.MaxParallelism
	if def.MaxParallelism > 0 {
		maxParallelism = def.MaxParallelism
	}

	var runArchive archive.Archive
	if opts.ArchivePath != "" {
		ctx := context.Background()
		sqlArchive, err := archive.OpenSQLite(ctx, opts.ArchivePath)
		if err != nil {
			return err
		}
		defer sqlArchive.Close()
		runArchive = sqlArchive
	}

	log := logging.New(baseLoggerOptions(root))
	runLog := logging.ForRun(log, def.Name, executionID)

	model := tui.NewModel(analysis.Plan)
	interactive := !opts.NonInteractive

	var program *tea.Program
	done := make(chan struct{})
	var programErr error

	if interactive {
		program = tea.NewProgram(model)
		go func() {
			_, programErr = program.Run()
			close(done)
		}()
	}

	send := func(msg tea.Msg) {
		if interactive && program != nil {
			program.Send(msg)
		}
	}

	callbacks := engine.Callbacks{
		OnNodeStart: func(nodeID string) {
			send(tui.NodeStartMsg{NodeID: nodeID})
			if !interactive {
				runLog.Info().Str("node_id", nodeID).Msg("node started")
			}
		},
		OnNodeComplete: func(nodeID string, output any) {
			send(tui.NodeCompleteMsg{NodeID: nodeID, Status: state.StatusCompleted})
			if !interactive {
				runLog.Info().Str("node_id", nodeID).Msg("node completed")
			}
		},
		OnNodeError: func(nodeID string, err error) {
			send(tui.NodeCompleteMsg{NodeID: nodeID, Status: state.StatusFailed, Err: err})
			if !interactive {
				runLog.Error().Str("node_id", nodeID).Err(err).Msg("node failed")
			}
		},
	}

	engOpts := []engine.Option{
		engine.WithMaxParallelism(maxParallelism),
		engine.WithFallbacks(def.Fallbacks),
		engine.WithLogger(runLog),
		engine.WithCallbacks(callbacks),
	}
	if runArchive != nil {
		engOpts = append(engOpts, engine.WithArchive(runArchive))
	}
	eng := engine.New(engOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	stats, execErr := eng.Run(ctx, executionID, nodes, edges)

	if interactive {
		send(tui.DoneMsg{Stats: statsOrZero(stats), Err: execErr})
		if program != nil {
			program.Send(tea.QuitMsg{})
		}
		<-done
		if programErr != nil {
			return programErr
		}
	} else {
		if stats != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "completed=%d failed=%d cancelled=%d wall=%s\n", stats.Completed, stats.Failed, stats.Cancelled, stats.WallTime)
		}
	}

	return execErr
}

func statsOrZero(s *state.Stats) state.Stats {
	if s == nil {
		return state.Stats{}
	}
	return *s
}
