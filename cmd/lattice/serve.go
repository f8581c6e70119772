package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/extract"
	"github.com/latticehq/lattice/internal/graph"
	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/schema"
	"github.com/latticehq/lattice/internal/server"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose ingestion and entity search over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			client, err := llm.NewClient(context.Background(), cfg.LLM)
			if err != nil {
				return err
			}

			var s *schema.Schema
			if cfg.SchemaPath != "" {
				if s, err = schema.Load(cfg.SchemaPath); err != nil {
					return err
				}
			}

			driver, err := graph.NewMemgraphDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
			if err != nil {
				return err
			}
			if err := driver.BuildIndices(context.Background()); err != nil {
				return err
			}

			fps, closeFPs, err := openFingerprints(driver)
			if err != nil {
				return err
			}
			defer closeFPs()

			srv := server.NewServer(cfg, graph.NewStore(driver), extract.NewExtractor(client, s), fps)
			r := srv.SetupRouter()

			if env := os.Getenv("PORT"); env != "" {
				port = env
			}
			slog.Info("starting server", "port", port)
			return r.Run(":" + port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "port to listen on")
	return cmd
}
