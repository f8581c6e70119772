package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/schema"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the entity types the extractor will use",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := schema.DefaultSchema()
			if cfg.SchemaPath != "" {
				loaded, err := schema.Load(cfg.SchemaPath)
				if err != nil {
					return err
				}
				s = loaded
			}
			for _, t := range s.Types {
				fmt.Printf("%-16s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}
