package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nodeforge/flowengine/internal/api"
	"github.com/nodeforge/flowengine/internal/archive"
	"github.com/nodeforge/flowengine/internal/engine"
	"github.com/nodeforge/flowengine/internal/logging"
)

func newServeCmd(root *rootFlags) *cobra.Command {
	var addr, archivePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and websocket API for launching and watching runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(baseLoggerOptions(root))

			var runArchive archive.Archive
			if archivePath != "" {
				sqlArchive, err := archive.OpenSQLite(context.Background(), archivePath)
				if err != nil {
					return err
				}
				defer sqlArchive.Close()
				runArchive = sqlArchive
			} else {
				runArchive = archive.NewMemoryArchive()
			}

			newEng := func(opts ...engine.Option) *engine.Engine {
				opts = append(opts, engine.WithLogger(log), engine.WithArchive(runArchive))
				return engine.New(opts...)
			}

			srv := api.NewServer(runArchive, newEng, log)
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
			return http.ListenAndServe(addr, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&archivePath, "archive", "", "path to a sqlite archive database (in-memory if omitted)")

	return cmd
}
