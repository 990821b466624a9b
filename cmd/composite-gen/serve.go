package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/composite-gen/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server on stdin and stdout",
		Long: `serve speaks JSON-RPC 2.0 (Model Context Protocol) over stdio, one request per
line. Logs go to stderr. Configure it as a stdio server in an MCP client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("starting MCP server", "version", Version, "built", BuildTime, "commit", GitCommit)
			srv := server.New(server.Options{
				Version:   Version,
				Logger:    slog.Default(),
				LookupEnv: lookupEnv,
				In:        cmd.InOrStdin(),
				Out:       cmd.OutOrStdout(),
			})
			return srv.Run(cmd.Context())
		},
	}
}
