package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryanwith/melchi/internal/warehouse"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}

func TestQualifiedIdent(t *testing.T) {
	table := warehouse.TableDescriptor{Database: "db", Schema: "public", Table: "orders"}
	assert.Equal(t, `"public"."orders"`, qualifiedIdent(table))
}

func TestMetaTableIdent(t *testing.T) {
	assert.Equal(t, `"melchi_metadata"."captured_tables"`, metaTableIdent(capturedTablesTable))
}
