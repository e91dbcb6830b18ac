package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wildvoice/wildrag/internal/entity"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the configured entities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := entity.Default()
		for _, name := range registry.Names() {
			cfg, err := registry.Get(name)
			if err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("%-12s %s (%s.%s)", name, cfg.Description, cfg.DatabaseName, cfg.ContainerName))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
}
