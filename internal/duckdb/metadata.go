package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

const (
	capturedTablesTable = "captured_tables"
	sourceColumnsTable  = "source_columns"
	etlEventsTable      = "etl_events"
)

// EnsureMetadataTables creates melchi's three bookkeeping tables
// (spec.md §3, §4.4) in the currently open target transaction, if
// absent.
func (b *Backend) EnsureMetadataTables(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  database_name VARCHAR,
  schema_name VARCHAR NOT NULL,
  table_name VARCHAR NOT NULL,
  cdc_policy VARCHAR NOT NULL,
  primary_keys VARCHAR,
  created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
  updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
  PRIMARY KEY (schema_name, table_name)
)`, metaTableIdent(capturedTablesTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  schema_name VARCHAR NOT NULL,
  table_name VARCHAR NOT NULL,
  column_name VARCHAR NOT NULL,
  logical_type VARCHAR NOT NULL,
  is_primary_key BOOLEAN NOT NULL DEFAULT false
)`, metaTableIdent(sourceColumnsTable)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  schema_name VARCHAR NOT NULL,
  table_name VARCHAR NOT NULL,
  etl_id VARCHAR NOT NULL,
  rows_applied BIGINT NOT NULL,
  completed_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`, metaTableIdent(etlEventsTable)),
	}
	for _, stmt := range stmts {
		if _, err := b.q().ExecContext(ctx, stmt); err != nil {
			return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "ensure_metadata_tables", warehouse.TableDescriptor{}, err)
		}
	}
	return nil
}

// CreateTable materializes table on the target per schema (spec.md
// §4.4): derives the column list from schema, appends a non-nullable
// MELCHI_ROW_ID text column when schema requires a surrogate key, and
// never declares the primary key as a database constraint (so the
// batched apply protocol's statement-level atomicity is not at the
// mercy of mid-transaction constraint checks). Upserts captured_tables
// and replaces source_columns for table.
func (b *Backend) CreateTable(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, replaceExisting bool) error {
	if replaceExisting {
		if _, err := b.q().ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualifiedIdent(table))); err != nil {
			return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
		}
	}
	if _, err := b.q().ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(table.Schema))); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
	}

	var cols []string
	for _, c := range schema {
		nullability := ""
		if !c.Nullable {
			nullability = " NOT NULL"
		}
		cols = append(cols, fmt.Sprintf("%s %s%s", quoteIdent(c.Name), c.LogicalType, nullability))
	}
	needsSurrogate := schema.RequiresSurrogateKey(table.Policy)
	if needsSurrogate {
		cols = append(cols, quoteIdent(warehouse.SurrogateKeyColumn)+" VARCHAR NOT NULL")
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualifiedIdent(table), strings.Join(cols, ", "))
	if _, err := b.q().ExecContext(ctx, stmt); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
	}

	return b.recordCapturedTable(ctx, table, schema, needsSurrogate)
}

func (b *Backend) recordCapturedTable(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, needsSurrogate bool) error {
	keys := schema.EffectiveKey(table.Policy)
	if needsSurrogate {
		keys = []string{warehouse.SurrogateKeyColumn}
	}
	upsert := fmt.Sprintf(`
INSERT INTO %s (database_name, schema_name, table_name, cdc_policy, primary_keys, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, current_timestamp, current_timestamp)
ON CONFLICT (schema_name, table_name) DO UPDATE SET
  cdc_policy = excluded.cdc_policy,
  primary_keys = excluded.primary_keys,
  updated_at = current_timestamp`, metaTableIdent(capturedTablesTable))
	if _, err := b.q().ExecContext(ctx, upsert, table.Database, table.Schema, table.Table, string(table.Policy), strings.Join(keys, ",")); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
	}

	if _, err := b.q().ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE schema_name = ? AND table_name = ?", metaTableIdent(sourceColumnsTable)), table.Schema, table.Table); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
	}
	insertCol := fmt.Sprintf("INSERT INTO %s (schema_name, table_name, column_name, logical_type, is_primary_key) VALUES (?, ?, ?, ?, ?)", metaTableIdent(sourceColumnsTable))
	for _, c := range schema {
		if _, err := b.q().ExecContext(ctx, insertCol, table.Schema, table.Table, c.Name, c.LogicalType, c.IsPrimaryKey); err != nil {
			return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "create_table", table, err)
		}
	}
	return nil
}

// UpdateCDCTrackers refreshes captured_tables.updated_at and appends
// an etl_events row for table, in the currently open target
// transaction (spec.md §4.4 "ETL bookkeeping").
func (b *Backend) UpdateCDCTrackers(ctx context.Context, table warehouse.TableDescriptor, etlID string) error {
	return b.updateCDCTrackersWithCount(ctx, table, etlID, 0)
}

func (b *Backend) updateCDCTrackersWithCount(ctx context.Context, table warehouse.TableDescriptor, etlID string, rowsApplied int64) error {
	update := fmt.Sprintf("UPDATE %s SET updated_at = current_timestamp WHERE schema_name = ? AND table_name = ?", metaTableIdent(capturedTablesTable))
	if _, err := b.q().ExecContext(ctx, update, table.Schema, table.Table); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "update_cdc_trackers", table, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (schema_name, table_name, etl_id, rows_applied, completed_at) VALUES (?, ?, ?, ?, current_timestamp)", metaTableIdent(etlEventsTable))
	if _, err := b.q().ExecContext(ctx, insert, table.Schema, table.Table, etlID, rowsApplied); err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "update_cdc_trackers", table, err)
	}
	return nil
}

// GetETLIDs returns the distinct etl_ids already recorded as applied
// for table (spec.md §4.4). Read-only.
func (b *Backend) GetETLIDs(ctx context.Context, table warehouse.TableDescriptor) ([]string, error) {
	rows, err := b.q().QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT etl_id FROM %s WHERE schema_name = ? AND table_name = ?", metaTableIdent(etlEventsTable)), table.Schema, table.Table)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "get_etl_ids", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "get_etl_ids", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
