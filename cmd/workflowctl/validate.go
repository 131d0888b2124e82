package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nodeforge/flowengine/internal/config"
	"github.com/nodeforge/flowengine/internal/graph"
)

func newValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow definition file and print its execution plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := config.LoadWorkflowDefinition(path)
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
				for _, e := range analysis.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), e)
				}
				return fmt.Errorf("workflow %q is invalid", def.Name)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "workflow %q is valid: %d nodes, %d layers\n", def.Name, analysis.Plan.TotalNodes, len(analysis.Plan.Layers))
			fmt.Fprintln(cmd.OutOrStdout(), analysis.Plan.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "path to the workflow definition YAML file")
	cmd.MarkFlagRequired("file") //nolint:errcheck

	return cmd
}
