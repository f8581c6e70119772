package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment")
	}

	root := &cobra.Command{
		Use:   "lattice",
		Short: "Turn a folder of exported HTML documents into a knowledge graph",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
				return nil
			}
			cfg = config.Default()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newTypesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
