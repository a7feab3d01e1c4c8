package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwith/melchi/internal/warehouse"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadInterpolatesEnv(t *testing.T) {
	t.Setenv("MELCHI_TEST_PASSWORD", "s3cret")
	path := writeTemp(t, "config.yaml", `
source:
  type: snowflake
  account: myaccount
  username: svc_melchi
  password: ${MELCHI_TEST_PASSWORD}
target:
  type: duckdb
  path: ./warehouse.db
tables_config:
  path: ./tables.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "snowflake", cfg.Source.Type)
	assert.Equal(t, "s3cret", cfg.Source.Password)
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, "./tables.csv", cfg.TablesConfig.Path)
}

func TestLoadMissingEnvVarIsInvalidConfig(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
source:
  type: snowflake
  password: ${MELCHI_DEFINITELY_UNSET}
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, warehouse.ErrInvalidConfig)
}

func TestBackendConfigConnectionConfigStampsReplaceExisting(t *testing.T) {
	b := BackendConfig{Type: "snowflake", Account: "acct"}
	cc := b.ConnectionConfig(true)
	assert.Equal(t, warehouse.WarehouseKind("snowflake"), cc.Kind)
	assert.Equal(t, true, cc.Options["replace_existing"])
}

func TestLoadTablesDefaultsAndBOM(t *testing.T) {
	path := writeTemp(t, "tables.csv", "﻿database,schema,table,cdc_type\nDB,PUBLIC,ORDERS,\nDB,PUBLIC,EVENTS,STANDARD_STREAM\n")
	tables, err := LoadTables(path)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, warehouse.FullRefresh, tables[0].Policy)
	assert.Equal(t, "DB", tables[0].Database)
	assert.Equal(t, warehouse.StandardStream, tables[1].Policy)
}

func TestLoadTablesUnknownCDCType(t *testing.T) {
	path := writeTemp(t, "tables.csv", "database,schema,table,cdc_type\nDB,PUBLIC,ORDERS,NOT_A_POLICY\n")
	_, err := LoadTables(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, warehouse.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "FULL_REFRESH")
}

func TestLoadTablesEmptyIdentifierPart(t *testing.T) {
	path := writeTemp(t, "tables.csv", "database,schema,table,cdc_type\nDB,,ORDERS,\n")
	_, err := LoadTables(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, warehouse.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadTablesMissingFile(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, warehouse.ErrInvalidConfig)
}
