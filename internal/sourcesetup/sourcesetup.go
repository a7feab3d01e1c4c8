// Package sourcesetup implements Source Setup: the setup-time step
// that validates each in-scope table's policy and provisions its
// source-side stream and staging objects (spec.md §4.3).
package sourcesetup

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanwith/melchi/internal/melchilog"
	"github.com/ryanwith/melchi/internal/warehouse"
)

// Setup validates every table's policy against its live source schema,
// collecting all problems before returning a single error (spec.md
// §4.3 "All problems for the entire batch are collected and reported
// at once"), then provisions the stream/staging objects for every
// stream-policy table inside one source transaction.
func Setup(ctx context.Context, source warehouse.Warehouse, tables []warehouse.TableDescriptor, replaceExisting bool, log *melchilog.Logger) error {
	schemas, err := validate(ctx, source, tables)
	if err != nil {
		return err
	}

	if err := source.Begin(ctx); err != nil {
		return fmt.Errorf("source begin: %w", err)
	}

	if err := setupBody(ctx, source, tables, schemas, replaceExisting, log); err != nil {
		_ = source.Rollback(ctx)
		return err
	}

	if err := source.Commit(ctx); err != nil {
		_ = source.Rollback(ctx)
		return fmt.Errorf("source commit: %w", err)
	}
	return nil
}

// validate reads each table's schema and rejects STANDARD_STREAM over
// a geometry/geography column (spec.md §4.3: "the source's change
// mechanism cannot emit such columns in full-diff mode").
func validate(ctx context.Context, source warehouse.Warehouse, tables []warehouse.TableDescriptor) (map[string]warehouse.Schema, error) {
	schemas := make(map[string]warehouse.Schema, len(tables))
	var problems []string

	for _, table := range tables {
		fqn := table.FullyQualifiedName()
		schema, err := source.GetSchema(ctx, table)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: reading schema: %v", fqn, err))
			continue
		}
		schemas[fqn] = schema

		if table.Policy == warehouse.StandardStream && schema.HasGeometryColumn() {
			problems = append(problems, fmt.Sprintf(
				"%s: STANDARD_STREAM is not supported over tables with geometry/geography columns", fqn))
		}
	}

	if len(problems) > 0 {
		return nil, warehouse.NewConfigError("sourcesetup", "%s", strings.Join(problems, "; "))
	}
	return schemas, nil
}

func setupBody(ctx context.Context, source warehouse.Warehouse, tables []warehouse.TableDescriptor, schemas map[string]warehouse.Schema, replaceExisting bool, log *melchilog.Logger) error {
	for _, table := range tables {
		if !table.Policy.IsStream() {
			continue
		}
		schema := schemas[table.FullyQualifiedName()]
		if err := source.SetupEnvironment(ctx, table, schema, replaceExisting); err != nil {
			return fmt.Errorf("setting up %s: %w", table.FullyQualifiedName(), err)
		}
		log.Info("source environment ready for %s", table.FullyQualifiedName())
	}
	return nil
}
