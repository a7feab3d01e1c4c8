package snowflake

import (
	"context"
	"database/sql"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// GetSchema introspects table's live columns and primary key from
// Snowflake's INFORMATION_SCHEMA, the same source the teacher's schema
// discovery queries against rather than SHOW-command parsing.
func (b *Backend) GetSchema(ctx context.Context, table warehouse.TableDescriptor) (warehouse.Schema, error) {
	const colQuery = `
SELECT column_name, data_type, is_nullable, column_default
FROM identifier(?).information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`

	rows, err := b.q().QueryContext(ctx, colQuery, table.Database, table.Schema, table.Table)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
	}
	defer rows.Close()

	var schema warehouse.Schema
	for rows.Next() {
		var name, dataType, nullable string
		var def sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &def); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
		}
		col := warehouse.ColumnDescriptor{
			Name:        name,
			LogicalType: dataType,
			Nullable:    nullable == "YES",
		}
		if def.Valid {
			col.Default = &def.String
		}
		schema = append(schema, col)
	}
	if err := rows.Err(); err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
	}
	if len(schema) == 0 {
		return nil, warehouse.NewMissingObject(string(warehouse.KindSnowflake), "get_schema", table, "table")
	}

	pkQuery := `
SELECT kcu.column_name
FROM identifier(?).information_schema.table_constraints tc
JOIN identifier(?).information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = ? AND tc.table_name = ?`

	pkRows, err := b.q().QueryContext(ctx, pkQuery, table.Database, table.Database, table.Schema, table.Table)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
	}
	defer pkRows.Close()

	pkSet := make(map[string]bool)
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
		}
		pkSet[name] = true
	}
	if err := pkRows.Err(); err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_schema", table, err)
	}

	for i := range schema {
		schema[i].IsPrimaryKey = pkSet[schema[i].Name]
	}
	return schema, nil
}

// tableExists checks, without a full schema read, whether table is
// present in Snowflake — used by SetupEnvironment's precondition check.
func (b *Backend) tableExists(ctx context.Context, table warehouse.TableDescriptor) (bool, error) {
	const q = `
SELECT COUNT(*) FROM identifier(?).information_schema.tables
WHERE table_schema = ? AND table_name = ?`
	var n int
	if err := b.q().QueryRowContext(ctx, q, table.Database, table.Schema, table.Table).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
