package main

import (
	"github.com/spf13/cobra"

	"github.com/ryanwith/melchi/internal/melchilog"
)

var (
	cfgFile         string
	replaceExisting bool
	log             = melchilog.New()
)

var rootCmd = &cobra.Command{
	Use:           "melchi",
	Short:         "Replicate change data from Snowflake into DuckDB",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&replaceExisting, "replace-existing", false,
		"recreate existing stream/staging/table objects instead of reusing them")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(syncDataCmd)
	rootCmd.AddCommand(generateSourceSQLCmd)
}
