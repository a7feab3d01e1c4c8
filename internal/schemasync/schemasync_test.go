package schemasync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwith/melchi/internal/melchilog"
	"github.com/ryanwith/melchi/internal/warehouse"
)

type stubSource struct {
	warehouse.Warehouse
	schemas map[string]warehouse.Schema
}

func (s *stubSource) GetSchema(ctx context.Context, table warehouse.TableDescriptor) (warehouse.Schema, error) {
	schema, ok := s.schemas[table.FullyQualifiedName()]
	if !ok {
		return nil, errors.New("no schema registered for " + table.FullyQualifiedName())
	}
	return schema, nil
}

type stubTarget struct {
	warehouse.Warehouse
	tx               bool
	ensuredMetadata  bool
	created          map[string]warehouse.Schema
	failOnTable      string
	commitErr        error
}

func (t *stubTarget) Begin(ctx context.Context) error    { t.tx = true; return nil }
func (t *stubTarget) Commit(ctx context.Context) error   { t.tx = false; return t.commitErr }
func (t *stubTarget) Rollback(ctx context.Context) error { t.tx = false; return nil }

func (t *stubTarget) EnsureMetadataTables(ctx context.Context) error {
	t.ensuredMetadata = true
	return nil
}

func (t *stubTarget) CreateTable(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, replaceExisting bool) error {
	if table.Table == t.failOnTable {
		return errors.New("injected create-table failure")
	}
	if t.created == nil {
		t.created = map[string]warehouse.Schema{}
	}
	t.created[table.FullyQualifiedName()] = schema
	return nil
}

func TestSyncCreatesTypeMappedTables(t *testing.T) {
	source := &stubSource{schemas: map[string]warehouse.Schema{
		"DB.PUBLIC.ORDERS": {
			{Name: "ID", LogicalType: "NUMBER(38,0)", IsPrimaryKey: true},
			{Name: "LOC", LogicalType: "GEOGRAPHY"},
		},
	}}
	target := &stubTarget{}
	tables := []warehouse.TableDescriptor{{Database: "DB", Schema: "PUBLIC", Table: "ORDERS", Policy: warehouse.FullRefresh}}

	err := Sync(context.Background(), source, target, tables, false, melchilog.New())
	require.NoError(t, err)
	assert.True(t, target.ensuredMetadata)
	require.Contains(t, target.created, "DB.PUBLIC.ORDERS")
	mapped := target.created["DB.PUBLIC.ORDERS"]
	assert.Equal(t, "DECIMAL(38,0)", mapped[0].LogicalType)
	assert.Equal(t, "GEOMETRY", mapped[1].LogicalType)
}

func TestSyncRollsBackOnFailure(t *testing.T) {
	source := &stubSource{schemas: map[string]warehouse.Schema{
		"DB.PUBLIC.A": {{Name: "ID", IsPrimaryKey: true}},
		"DB.PUBLIC.B": {{Name: "ID", IsPrimaryKey: true}},
	}}
	target := &stubTarget{failOnTable: "B"}
	tables := []warehouse.TableDescriptor{
		{Database: "DB", Schema: "PUBLIC", Table: "A", Policy: warehouse.FullRefresh},
		{Database: "DB", Schema: "PUBLIC", Table: "B", Policy: warehouse.FullRefresh},
	}

	err := Sync(context.Background(), source, target, tables, false, melchilog.New())
	require.Error(t, err)
	assert.False(t, target.tx)
}
