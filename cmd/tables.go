package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/demand-cli/internal/occupancy"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Print the effective density tables",
	Long:  "Loads the density tables named by --file or pipeline.density_tables, validates them, and prints them as YAML. Built-in tables are used when neither is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("tables"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Pipeline.DensityTables
		}

		tables, err := occupancy.LoadOrDefault(path)
		if err != nil {
			return err
		}
		data, err := tables.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	tablesCmd.Flags().String("file", "", "density table YAML file (default from config)")
	rootCmd.AddCommand(tablesCmd)
}
