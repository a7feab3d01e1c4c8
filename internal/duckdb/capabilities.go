package duckdb

import (
	"context"
	"database/sql"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// SupportedCDCPolicies reports that DuckDB, played as target, can apply
// change data produced under all three policies (spec.md §4.2).
func (b *Backend) SupportedCDCPolicies() []warehouse.CDCPolicy {
	return []warehouse.CDCPolicy{warehouse.FullRefresh, warehouse.AppendOnlyStream, warehouse.StandardStream}
}

// AuthType names the authentication mechanism this connection uses. A
// file-backed DuckDB database has no credentials to present, unlike the
// warehouse-session auth the source side negotiates.
func (b *Backend) AuthType() string {
	return "LOCAL_FILE"
}

// GetChangeTrackingSchemaFQN returns the schema melchi's own
// bookkeeping tables (captured_tables, source_columns, etl_events) live
// in on the target (spec.md §4.2, §3 "Stream-Processing Staging").
// DuckDB databases are single-catalog files, so unlike Snowflake's
// database.schema pair there is no separate database component to
// qualify.
func (b *Backend) GetChangeTrackingSchemaFQN() string {
	return MetadataSchema
}

// ExecuteQuery runs sql directly against the currently open connection
// or transaction, optionally returning rows as a Batch (spec.md §4.2,
// reserved for tests/setup).
func (b *Backend) ExecuteQuery(ctx context.Context, sqlText string, returnRows bool) (*warehouse.Batch, error) {
	if !returnRows {
		if _, err := b.q().ExecContext(ctx, sqlText); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "execute_query", warehouse.TableDescriptor{}, err)
		}
		return nil, nil
	}

	rows, err := b.q().QueryContext(ctx, sqlText)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "execute_query", warehouse.TableDescriptor{}, err)
	}
	defer rows.Close()

	batch, err := drainRows(rows)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "execute_query", warehouse.TableDescriptor{}, err)
	}
	return batch, nil
}

// drainRows reads every remaining row of rows into a single Batch, for
// callers (ExecuteQuery) that want a whole result set rather than a
// row-by-row scan.
func drainRows(rows *sql.Rows) (*warehouse.Batch, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	scratch := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range ptrs {
		ptrs[i] = &scratch[i]
	}
	batch := &warehouse.Batch{Columns: cols}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(cols))
		copy(row, scratch)
		batch.Rows = append(batch.Rows, row)
	}
	return batch, rows.Err()
}
