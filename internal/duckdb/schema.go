package duckdb

import (
	"context"
	"database/sql"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// GetSchema introspects table's live columns from DuckDB's
// information_schema and its primary key from duckdb_constraints(),
// mirroring the Snowflake backend's information_schema-based approach.
func (b *Backend) GetSchema(ctx context.Context, table warehouse.TableDescriptor) (warehouse.Schema, error) {
	const colQuery = `
SELECT column_name, data_type, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`

	rows, err := b.q().QueryContext(ctx, colQuery, table.Schema, table.Table)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
	}
	defer rows.Close()

	var schema warehouse.Schema
	for rows.Next() {
		var name, dataType, nullable string
		var def sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &def); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
		}
		col := warehouse.ColumnDescriptor{Name: name, LogicalType: dataType, Nullable: nullable == "YES"}
		if def.Valid {
			col.Default = &def.String
		}
		schema = append(schema, col)
	}
	if err := rows.Err(); err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
	}
	if len(schema) == 0 {
		return nil, warehouse.NewMissingObject(string(warehouse.KindDuckDB), "get_schema", table, "table")
	}

	const pkQuery = `
SELECT constraint_column_names
FROM duckdb_constraints()
WHERE schema_name = ? AND table_name = ? AND constraint_type = 'PRIMARY KEY'`

	pkRows, err := b.q().QueryContext(ctx, pkQuery, table.Schema, table.Table)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
	}
	defer pkRows.Close()

	pkSet := make(map[string]bool)
	for pkRows.Next() {
		var cols []string
		if err := pkRows.Scan(&cols); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
		}
		for _, c := range cols {
			pkSet[c] = true
		}
	}
	if err := pkRows.Err(); err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindDuckDB), "get_schema", table, err)
	}

	for i := range schema {
		schema[i].IsPrimaryKey = pkSet[schema[i].Name]
	}
	return schema, nil
}
