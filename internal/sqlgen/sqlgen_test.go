package sqlgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryanwith/melchi/internal/warehouse"
)

func TestGenerateSourceSQLSkipsFullRefresh(t *testing.T) {
	tables := []warehouse.TableDescriptor{
		{Database: "DB", Schema: "PUBLIC", Table: "ORDERS", Policy: warehouse.FullRefresh},
		{Database: "DB", Schema: "PUBLIC", Table: "EVENTS", Policy: warehouse.StandardStream},
	}
	tracking := ChangeTrackingSchema{Database: "DB", Schema: "MELCHI_CDC"}

	sql := GenerateSourceSQL(tables, tracking, false)
	assert.Contains(t, sql, "CREATE SCHEMA IF NOT EXISTS DB.MELCHI_CDC;")
	assert.Contains(t, sql, "CREATE STREAM IF NOT EXISTS DB.MELCHI_CDC.MELCHI_STREAM_PUBLIC_EVENTS ON TABLE DB.PUBLIC.EVENTS")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS DB.MELCHI_CDC.MELCHI_STAGING_PUBLIC_EVENTS LIKE DB.PUBLIC.EVENTS;")
	assert.NotContains(t, sql, "ORDERS")
}

func TestGenerateSourceSQLAppendOnlyFlag(t *testing.T) {
	tables := []warehouse.TableDescriptor{
		{Database: "DB", Schema: "PUBLIC", Table: "LOGS", Policy: warehouse.AppendOnlyStream},
	}
	sql := GenerateSourceSQL(tables, ChangeTrackingSchema{Database: "DB", Schema: "MELCHI_CDC"}, false)
	assert.Contains(t, sql, "APPEND_ONLY = TRUE")
}

func TestGenerateSourceSQLReplaceExisting(t *testing.T) {
	tables := []warehouse.TableDescriptor{
		{Database: "DB", Schema: "PUBLIC", Table: "EVENTS", Policy: warehouse.StandardStream},
	}
	sql := GenerateSourceSQL(tables, ChangeTrackingSchema{Database: "DB", Schema: "MELCHI_CDC"}, true)
	assert.Contains(t, sql, "CREATE OR REPLACE STREAM")
	assert.Contains(t, sql, "CREATE OR REPLACE TABLE")
}

func TestGeneratePermissionsSQLDedupesDatabaseAndSchemaGrants(t *testing.T) {
	tables := []warehouse.TableDescriptor{
		{Database: "DB1", Schema: "S1", Table: "T1", Policy: warehouse.FullRefresh},
		{Database: "DB1", Schema: "S1", Table: "T2", Policy: warehouse.StandardStream},
		{Database: "DB2", Schema: "S2", Table: "T3", Policy: warehouse.AppendOnlyStream},
	}
	cfg := PermissionsConfig{
		Role:      "MELCHI_ROLE",
		Warehouse: "MELCHI_WH",
		Tracking:  ChangeTrackingSchema{Database: "DB1", Schema: "MELCHI_CDC"},
	}
	sql := GeneratePermissionsSQL(cfg, tables)

	assert.Equal(t, 1, strings.Count(sql, "GRANT USAGE ON DATABASE DB1 TO ROLE MELCHI_ROLE;"))
	assert.Equal(t, 1, strings.Count(sql, "GRANT USAGE ON DATABASE DB2 TO ROLE MELCHI_ROLE;"))
	assert.Equal(t, 1, strings.Count(sql, "GRANT USAGE ON SCHEMA DB1.S1 TO ROLE MELCHI_ROLE;"))
	assert.Equal(t, 1, strings.Count(sql, "GRANT SELECT ON TABLE DB1.S1.T1 TO ROLE MELCHI_ROLE;"))
	assert.Equal(t, 1, strings.Count(sql, "GRANT SELECT ON TABLE DB1.S1.T2 TO ROLE MELCHI_ROLE;"))
	assert.Contains(t, sql, "ALTER TABLE DB2.S2.T3 SET CHANGE_TRACKING = TRUE;")
	assert.Contains(t, sql, "USE ROLE SECURITYADMIN;")
}

func TestGeneratePermissionsSQLEmptyTables(t *testing.T) {
	cfg := PermissionsConfig{Role: "MELCHI_ROLE", Warehouse: "MELCHI_WH", Tracking: ChangeTrackingSchema{Database: "DB", Schema: "MELCHI_CDC"}}
	sql := GeneratePermissionsSQL(cfg, nil)
	assert.Contains(t, sql, "GRANT USAGE ON WAREHOUSE MELCHI_WH TO ROLE MELCHI_ROLE;")
	assert.NotContains(t, sql, "GRANT SELECT ON TABLE")
}
