package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanwith/melchi/internal/schemasync"
	"github.com/ryanwith/melchi/internal/sourcesetup"
	"github.com/ryanwith/melchi/internal/warehouse"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision source CDC objects and sync schemas onto the target",
	Long: "Runs source setup (change-stream and staging objects for every stream-policy " +
		"table) followed by schema sync (creating each in-scope table's type-mapped " +
		"equivalent on the target).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp()
		if err != nil {
			log.Error("loading config: %v", err)
			return err
		}

		source, err := warehouse.Connect(ctx, a.sourceConn)
		if err != nil {
			log.Error("connecting source: %v", err)
			return err
		}
		defer source.Close()

		target, err := warehouse.Connect(ctx, a.targetConn)
		if err != nil {
			log.Error("connecting target: %v", err)
			return err
		}
		defer target.Close()

		if err := sourcesetup.Setup(ctx, source, a.tables, replaceExisting, log); err != nil {
			log.Error("source setup: %v", err)
			return fmt.Errorf("source setup: %w", err)
		}
		log.Info("source setup complete")

		if err := schemasync.Sync(ctx, source, target, a.tables, replaceExisting, log); err != nil {
			log.Error("schema sync: %v", err)
			return fmt.Errorf("schema sync: %w", err)
		}
		log.Info("schema sync complete")
		return nil
	},
}
