package normalizer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwith/melchi/internal/warehouse"
)

func TestMapColumnType(t *testing.T) {
	cases := map[string]string{
		"NUMBER(10,2)":      "DECIMAL(10,2)",
		"NUMBER":            "DECIMAL(38,0)",
		"VARCHAR(16)":       "VARCHAR(16)",
		"VARCHAR":           "VARCHAR",
		"TIMESTAMP_NTZ(9)":  "TIMESTAMP",
		"GEOGRAPHY":         "GEOMETRY",
		"GEOMETRY":          "GEOMETRY",
		"VECTOR(FLOAT,256)": "FLOAT[256]",
		"VECTOR(INT,16)":    "INT[16]",
		"SOMETHING_UNKNOWN": "VARCHAR",
	}
	for in, want := range cases {
		assert.Equal(t, want, MapColumnType(in), "input %s", in)
	}
}

func TestMapSchemaPreservesOtherFields(t *testing.T) {
	in := warehouse.Schema{
		{Name: "ID", LogicalType: "NUMBER(38,0)", IsPrimaryKey: true},
		{Name: "LOC", LogicalType: "GEOGRAPHY", Nullable: true},
	}
	out := MapSchema(in)
	require.Len(t, out, 2)
	assert.Equal(t, "ID", out[0].Name)
	assert.True(t, out[0].IsPrimaryKey)
	assert.Equal(t, "DECIMAL(38,0)", out[0].LogicalType)
	assert.Equal(t, "GEOMETRY", out[1].LogicalType)
	assert.True(t, out[1].Nullable)
}

func TestCoerceBatchGeometry(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", LogicalType: "NUMBER(38,0)"},
		{Name: "LOC", LogicalType: "GEOGRAPHY"},
	}
	fn := CoerceBatch(schema)
	in := warehouse.Batch{
		Columns: []string{"ID", "LOC"},
		Rows: [][]interface{}{
			{"1", `{"type":"Point","coordinates":[30,10]}`},
		},
	}
	out, err := fn(in)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, decimal.RequireFromString("1"), out.Rows[0][0])
	assert.Equal(t, "POINT(30 10)", out.Rows[0][1])
}

func TestCoerceBatchNilPassthrough(t *testing.T) {
	schema := warehouse.Schema{{Name: "LOC", LogicalType: "GEOMETRY"}}
	fn := CoerceBatch(schema)
	out, err := fn(warehouse.Batch{Columns: []string{"LOC"}, Rows: [][]interface{}{{nil}}})
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0][0])
}

func TestCoerceBatchIdentityWhenNoSpecialColumns(t *testing.T) {
	schema := warehouse.Schema{{Name: "NAME", LogicalType: "VARCHAR"}}
	fn := CoerceBatch(schema)
	in := warehouse.Batch{Columns: []string{"NAME"}, Rows: [][]interface{}{{"hi"}}}
	out, err := fn(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
