// Package schemasync implements the Schema Synchronizer: the
// setup-time step that mirrors each in-scope table's source schema
// onto the target, type-mapped through the normalizer (spec.md §4.6).
package schemasync

import (
	"context"
	"fmt"

	"github.com/ryanwith/melchi/internal/melchilog"
	"github.com/ryanwith/melchi/internal/normalizer"
	"github.com/ryanwith/melchi/internal/warehouse"
)

// Sync reads each table's live schema from source and creates the
// type-mapped equivalent on target, all inside one target transaction
// (the teacher's SchemaOperator.CreateStructure pattern: provision
// bookkeeping, then one commit or one rollback for the whole batch).
func Sync(ctx context.Context, source, target warehouse.Warehouse, tables []warehouse.TableDescriptor, replaceExisting bool, log *melchilog.Logger) error {
	if err := target.Begin(ctx); err != nil {
		return fmt.Errorf("target begin: %w", err)
	}

	if err := syncBody(ctx, source, target, tables, replaceExisting, log); err != nil {
		_ = target.Rollback(ctx)
		return err
	}

	if err := target.Commit(ctx); err != nil {
		_ = target.Rollback(ctx)
		return fmt.Errorf("target commit: %w", err)
	}
	return nil
}

func syncBody(ctx context.Context, source, target warehouse.Warehouse, tables []warehouse.TableDescriptor, replaceExisting bool, log *melchilog.Logger) error {
	if err := target.EnsureMetadataTables(ctx); err != nil {
		return fmt.Errorf("ensuring metadata tables: %w", err)
	}

	for _, table := range tables {
		sourceSchema, err := source.GetSchema(ctx, table)
		if err != nil {
			return fmt.Errorf("reading schema for %s: %w", table.FullyQualifiedName(), err)
		}

		targetSchema := normalizer.MapSchema(sourceSchema)
		if err := target.CreateTable(ctx, table, targetSchema, replaceExisting); err != nil {
			return fmt.Errorf("creating target table for %s: %w", table.FullyQualifiedName(), err)
		}
		log.Info("schema transferred for %s", table.FullyQualifiedName())
	}
	return nil
}
