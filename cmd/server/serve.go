package main

import (
	"github.com/spf13/cobra"

	"github.com/sakif/timekeeper/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Open the database, apply pending migrations and serve the procedure API
until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.New(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			return srv.Start()
		},
	}
}
