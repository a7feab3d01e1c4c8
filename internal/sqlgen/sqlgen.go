// Package sqlgen generates the Snowflake-side setup SQL an operator
// runs by hand: change-stream/staging DDL and the GRANT statements the
// melchi service role needs (spec.md §6 generate_source_sql;
// supplemented from original_source/src/source_sql_generator.py and
// generate_permissions.py).
package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// ChangeTrackingSchema names the database.schema melchi's own stream
// and staging objects live under on the source.
type ChangeTrackingSchema struct {
	Database string
	Schema   string
}

func (c ChangeTrackingSchema) fullName() string {
	return c.Database + "." + c.Schema
}

// GenerateSourceSQL emits one change-stream plus one LIKE-based staging
// table per stream-policy table, preceded by the change-tracking
// schema's own CREATE SCHEMA statement. FULL_REFRESH tables need no
// source-side objects and are skipped (spec.md §4.3 setup). Mirrors the
// teacher-adjacent reference's create_cdc_stream: the staging table is
// declared via LIKE so no prior schema introspection is required to
// produce this text.
func GenerateSourceSQL(tables []warehouse.TableDescriptor, tracking ChangeTrackingSchema, replaceExisting bool) string {
	var b strings.Builder

	b.WriteString("-- This command creates the change tracking schema. Not required if it already exists.\n")
	fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %s;\n\n", tracking.fullName())

	for _, table := range tables {
		if !table.Policy.IsStream() {
			continue
		}
		writeStreamDDL(&b, table, tracking, replaceExisting)
	}

	return b.String()
}

func writeStreamDDL(b *strings.Builder, table warehouse.TableDescriptor, tracking ChangeTrackingSchema, replaceExisting bool) {
	sourceName := table.FullyQualifiedName()
	streamName := tracking.fullName() + "." + table.StreamName()
	stagingName := tracking.fullName() + "." + table.StagingTableName()

	appendOnly := ""
	if table.Policy == warehouse.AppendOnlyStream {
		appendOnly = " APPEND_ONLY = TRUE"
	}

	fmt.Fprintf(b, "-- %s (%s)\n", sourceName, table.Policy)
	if replaceExisting {
		fmt.Fprintf(b, "CREATE OR REPLACE STREAM %s ON TABLE %s SHOW_INITIAL_ROWS = true%s;\n", streamName, sourceName, appendOnly)
		fmt.Fprintf(b, "CREATE OR REPLACE TABLE %s LIKE %s;\n", stagingName, sourceName)
	} else {
		fmt.Fprintf(b, "CREATE STREAM IF NOT EXISTS %s ON TABLE %s SHOW_INITIAL_ROWS = true%s;\n", streamName, sourceName, appendOnly)
		fmt.Fprintf(b, "CREATE TABLE IF NOT EXISTS %s LIKE %s;\n", stagingName, sourceName)
	}
	fmt.Fprintf(b, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS \"MELCHI_ACTION\" VARCHAR;\n", stagingName)
	fmt.Fprintf(b, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS \"MELCHI_ISUPDATE\" BOOLEAN;\n", stagingName)
	fmt.Fprintf(b, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS \"MELCHI_ROW_ID_SRC\" VARCHAR;\n", stagingName)
	fmt.Fprintf(b, "ALTER TABLE %s ADD COLUMN IF NOT EXISTS \"MELCHI_ETL_ID\" VARCHAR;\n\n", stagingName)
}

// PermissionsConfig names the role and objects the GRANT statements
// reference.
type PermissionsConfig struct {
	Role      string
	Warehouse string
	Tracking  ChangeTrackingSchema
}

// GeneratePermissionsSQL emits the GRANT statements an operator runs as
// SECURITYADMIN (or equivalent) to let the melchi service role create
// its change-tracking objects and read from every in-scope source
// table (supplemented from generate_permissions.py; invoked by
// generate_source_sql behind --permissions).
func GeneratePermissionsSQL(cfg PermissionsConfig, tables []warehouse.TableDescriptor) string {
	general := []string{
		"USE ROLE SECURITYADMIN;",
		fmt.Sprintf("GRANT USAGE ON WAREHOUSE %s TO ROLE %s;", cfg.Warehouse, cfg.Role),
		fmt.Sprintf("GRANT USAGE ON DATABASE %s TO ROLE %s;", cfg.Tracking.Database, cfg.Role),
		fmt.Sprintf("GRANT USAGE ON SCHEMA %s TO ROLE %s;", cfg.Tracking.fullName(), cfg.Role),
		fmt.Sprintf("GRANT CREATE TABLE, CREATE STREAM ON SCHEMA %s TO ROLE %s;", cfg.Tracking.fullName(), cfg.Role),
	}

	databaseGrants := map[string]bool{}
	schemaGrants := map[string]bool{}
	var tableGrants, alterStatements []string

	for _, table := range tables {
		if table.Database != cfg.Tracking.Database {
			databaseGrants[fmt.Sprintf("GRANT USAGE ON DATABASE %s TO ROLE %s;", table.Database, cfg.Role)] = true
		}
		if table.Database+"."+table.Schema != cfg.Tracking.fullName() {
			schemaGrants[fmt.Sprintf("GRANT USAGE ON SCHEMA %s.%s TO ROLE %s;", table.Database, table.Schema, cfg.Role)] = true
		}
		tableGrants = append(tableGrants, fmt.Sprintf("GRANT SELECT ON TABLE %s TO ROLE %s;", table.FullyQualifiedName(), cfg.Role))
		alterStatements = append(alterStatements, fmt.Sprintf("ALTER TABLE %s SET CHANGE_TRACKING = TRUE;", table.FullyQualifiedName()))
	}

	var b strings.Builder
	b.WriteString("--These grants enable Melchi to create objects that track changes.\n")
	b.WriteString(strings.Join(general, "\n"))
	b.WriteString("\n\n")

	b.WriteString("--These grants enable Melchi to read changes from your objects.\n")
	b.WriteString(strings.Join(sortedKeys(databaseGrants), "\n"))
	if len(databaseGrants) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(sortedKeys(schemaGrants), "\n"))
	if len(schemaGrants) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(tableGrants, "\n"))
	b.WriteString("\n\n")

	if len(alterStatements) > 0 {
		b.WriteString("--These statements alter tables to allow Melchi to create CDC streams on them.\n")
		b.WriteString(strings.Join(alterStatements, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
