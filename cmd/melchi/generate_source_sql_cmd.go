package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ryanwith/melchi/internal/sqlgen"
	"github.com/ryanwith/melchi/internal/warehouse"
)

var (
	outputDir       string
	withPermissions bool
)

var generateSourceSQLCmd = &cobra.Command{
	Use:   "generate_source_sql",
	Short: "Write the Snowflake-side setup SQL for every in-scope table to --output",
	Long: "Generates the change-stream and staging-table DDL an operator runs by hand on " +
		"the source warehouse. Pure text generation; makes no warehouse connection. With " +
		"--permissions, also writes the GRANT statements the melchi service role needs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			log.Error("loading config: %v", err)
			return err
		}

		tracking, err := changeTrackingSchema(a.cfg.Source.Options)
		if err != nil {
			log.Error("%v", err)
			return err
		}

		sql := sqlgen.GenerateSourceSQL(a.tables, tracking, replaceExisting)
		if err := writeOutput(outputDir, "source_setup.sql", sql); err != nil {
			log.Error("writing source_setup.sql: %v", err)
			return err
		}
		log.Info("wrote %s", filepath.Join(outputDir, "source_setup.sql"))

		if withPermissions {
			permsCfg := sqlgen.PermissionsConfig{
				Role:      a.cfg.Source.Role,
				Warehouse: a.cfg.Source.Warehouse,
				Tracking:  tracking,
			}
			perms := sqlgen.GeneratePermissionsSQL(permsCfg, a.tables)
			if err := writeOutput(outputDir, "permissions.sql", perms); err != nil {
				log.Error("writing permissions.sql: %v", err)
				return err
			}
			log.Info("wrote %s", filepath.Join(outputDir, "permissions.sql"))
		}
		return nil
	},
}

func init() {
	generateSourceSQLCmd.Flags().StringVar(&outputDir, "output", ".", "directory to write generated SQL files into")
	generateSourceSQLCmd.Flags().BoolVar(&withPermissions, "permissions", false, "also generate the GRANT statements the service role needs")
}

func changeTrackingSchema(options map[string]interface{}) (sqlgen.ChangeTrackingSchema, error) {
	database, _ := options["change_tracking_database"].(string)
	schema, _ := options["change_tracking_schema"].(string)
	if database == "" || schema == "" {
		return sqlgen.ChangeTrackingSchema{}, warehouse.NewConfigError(
			"source", "source config must set change_tracking_database and change_tracking_schema")
	}
	return sqlgen.ChangeTrackingSchema{Database: database, Schema: schema}, nil
}

func writeOutput(dir, name, contents string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644)
}
