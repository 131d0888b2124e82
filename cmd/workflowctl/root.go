package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nodeforge/flowengine/internal/logging"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "workflowctl",
		Short:         "workflowctl runs DAG workflows of memos, file reads, scripts, and connectors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newResumeCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func baseLoggerOptions(flags *rootFlags) logging.Options {
	opts := logging.Options{Level: zerolog.InfoLevel}
	if flags.verbose {
		opts.Level = zerolog.DebugLevel
	}
	return opts
}
