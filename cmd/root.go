package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/demand-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "demand-cli",
	Short: "Building index and commuter demand pipeline",
	Long:  "Fetches building and place features per region, bins buildings into a 100 m grid, partitions them into neighbourhood territories, and writes the grid index and demand graph consumed by the simulation.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default ./config.yaml when present)")
	f.String("log-level", "", "override log.level (debug, info, warn, error)")
	f.String("log-format", "", "override log.format (json or console)")
}

// loadRuntime reads configuration for cmd, applies the logging flag
// overrides and installs the global logger.
func loadRuntime(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.LoadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		c.Log.Format = format
	}
	if err := config.InitLogger(c.Log); err != nil {
		return nil, eris.Wrap(err, "init logger")
	}

	zap.L().Debug("config loaded",
		zap.String("file", path),
		zap.Int("regions", len(c.Regions)),
	)
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
