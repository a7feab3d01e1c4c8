package snowflake

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

const (
	actionColumn   = "MELCHI_ACTION"
	isUpdateColumn = "MELCHI_ISUPDATE"
	rowIDColumn    = "MELCHI_ROW_ID_SRC"
	etlIDColumn    = "MELCHI_ETL_ID"
)

// SetupEnvironment provisions table's change-stream and staging table
// (spec.md §4.3). FULL_REFRESH tables are only checked for existence.
// Runs in the currently open source transaction.
func (b *Backend) SetupEnvironment(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, replaceExisting bool) error {
	exists, err := b.tableExists(ctx, table)
	if err != nil {
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "setup_environment", table, err)
	}
	if !exists {
		return warehouse.NewMissingObject(string(warehouse.KindSnowflake), "setup_environment", table, "base table")
	}
	if !table.Policy.IsStream() {
		return nil
	}
	if table.Policy == warehouse.StandardStream && schema.HasGeometryColumn() {
		return warehouse.Wrap(warehouse.NotSupported, string(warehouse.KindSnowflake), "setup_environment", table,
			fmt.Errorf("%s has a geometry/geography column; STANDARD_STREAM cannot capture full-diff changes over it — use APPEND_ONLY_STREAM or FULL_REFRESH instead", table.FullyQualifiedName()))
	}

	if err := b.ensureTrackingSchema(ctx); err != nil {
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "setup_environment", table, err)
	}

	if replaceExisting {
		if err := b.dropStreamAndStaging(ctx, table); err != nil {
			return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "setup_environment", table, err)
		}
	}

	if err := b.createStreamIfAbsent(ctx, table); err != nil {
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "setup_environment", table, err)
	}
	if err := b.createStagingIfAbsent(ctx, table, schema); err != nil {
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "setup_environment", table, err)
	}
	return nil
}

// ensureTrackingSchema creates the change-tracking schema melchi's
// stream and staging objects live under, if absent, mirroring
// sqlgen.GenerateSourceSQL's own "CREATE SCHEMA IF NOT EXISTS" preamble
// so `setup` and `generate_source_sql` provision the same object.
func (b *Backend) ensureTrackingSchema(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s", quoteIdent(b.trackingDatabase()), quoteIdent(b.trackingSchema()))
	_, err := b.q().ExecContext(ctx, stmt)
	return err
}

func (b *Backend) dropStreamAndStaging(ctx context.Context, table warehouse.TableDescriptor) error {
	stmts := []string{
		fmt.Sprintf("DROP STREAM IF EXISTS %s", b.streamIdent(table)),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", b.stagingIdent(table)),
	}
	for _, stmt := range stmts {
		if _, err := b.q().ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// createStreamIfAbsent creates an APPEND_ONLY stream for
// APPEND_ONLY_STREAM, or a standard (insert/update/delete) stream for
// STANDARD_STREAM, the way Snowflake's own CREATE STREAM syntax
// distinguishes the two. The stream object itself lives in the
// change-tracking schema, not the base table's own schema (spec.md §3
// "Stream-Processing Staging" is source-side CDC-engine state, kept
// apart from the replicated tables it watches).
func (b *Backend) createStreamIfAbsent(ctx context.Context, table warehouse.TableDescriptor) error {
	appendOnly := ""
	if table.Policy == warehouse.AppendOnlyStream {
		appendOnly = " APPEND_ONLY = TRUE"
	}
	stmt := fmt.Sprintf(
		"CREATE STREAM IF NOT EXISTS %s ON TABLE %s SHOW_INITIAL_ROWS = true%s",
		b.streamIdent(table), qualifiedIdent(table), appendOnly,
	)
	_, err := b.q().ExecContext(ctx, stmt)
	return err
}

// createStagingIfAbsent creates the staging table mirroring the base
// table's columns plus the four CDC metadata columns (spec.md §3), in
// the change-tracking schema alongside the stream.
func (b *Backend) createStagingIfAbsent(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema) error {
	var cols []string
	for _, c := range schema {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(c.Name), c.LogicalType))
	}
	cols = append(cols,
		quoteIdent(actionColumn)+" VARCHAR",
		quoteIdent(isUpdateColumn)+" BOOLEAN",
		quoteIdent(rowIDColumn)+" VARCHAR",
		quoteIdent(etlIDColumn)+" VARCHAR",
	)
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		b.stagingIdent(table), strings.Join(cols, ", "),
	)
	_, err := b.q().ExecContext(ctx, stmt)
	return err
}

// stagingIdent and streamIdent qualify a table's staging/stream object
// names under the backend's configured change-tracking schema (spec.md
// §4.2 get_change_tracking_schema_fqn), not the base table's own
// database/schema.
func (b *Backend) stagingIdent(table warehouse.TableDescriptor) string {
	return quoteIdent(b.trackingDatabase()) + "." + quoteIdent(b.trackingSchema()) + "." + quoteIdent(table.StagingTableName())
}

func (b *Backend) streamIdent(table warehouse.TableDescriptor) string {
	return quoteIdent(b.trackingDatabase()) + "." + quoteIdent(b.trackingSchema()) + "." + quoteIdent(table.StreamName())
}
