package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanwith/melchi/internal/coordinator"
)

var syncDataCmd = &cobra.Command{
	Use:   "sync_data",
	Short: "Run one CDC cycle over every in-scope table",
	Long: "Runs a single sync cycle for every table in the table-list CSV. A failure on " +
		"one table does not abort the others; the command exits non-zero if any table " +
		"failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			log.Error("loading config: %v", err)
			return err
		}

		c := coordinator.New(a.sourceConn, a.targetConn, log)

		var failures int
		for _, table := range a.tables {
			res, err := c.RunTable(ctx, table)
			if err != nil {
				log.Error("%s: %v", table.FullyQualifiedName(), err)
				failures++
				continue
			}
			log.Info("%s: applied %d rows (etl_id %s)", table.FullyQualifiedName(), res.RowsApplied, res.ETLID)
		}

		if failures > 0 {
			return fmt.Errorf("%d of %d tables failed to sync", failures, len(a.tables))
		}
		return nil
	},
}
