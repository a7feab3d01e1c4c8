package normalizer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// GeometryColumns returns the indices, within the unmapped source
// schema, of the columns whose source type is geometry/geography.
func GeometryColumns(sourceSchema warehouse.Schema) []int {
	var idx []int
	for i, c := range sourceSchema {
		if isGeometryType(c.LogicalType) {
			idx = append(idx, i)
		}
	}
	return idx
}

func isGeometryType(t string) bool {
	u := strings.ToUpper(t)
	return strings.Contains(u, "GEOGRAPHY") || strings.Contains(u, "GEOMETRY")
}

// DecimalColumns returns the indices of columns whose source type is a
// fixed-point numeric (NUMBER/DECIMAL/NUMERIC), which need exact
// decimal round-tripping rather than a lossy float conversion.
func DecimalColumns(sourceSchema warehouse.Schema) []int {
	var idx []int
	for i, c := range sourceSchema {
		switch baseTypeName(c.LogicalType) {
		case "NUMBER", "DECIMAL", "NUMERIC":
			idx = append(idx, i)
		}
	}
	return idx
}

// BinaryColumns returns the indices of columns whose source type is a
// binary type, whose driver-level representation needs canonicalizing
// to a plain []byte before insertion into the target.
func BinaryColumns(sourceSchema warehouse.Schema) []int {
	var idx []int
	for i, c := range sourceSchema {
		switch baseTypeName(c.LogicalType) {
		case "BINARY", "VARBINARY":
			idx = append(idx, i)
		}
	}
	return idx
}

// CoerceBatch builds the per-batch BatchFunc for a table's source
// schema: geometry columns are rewritten from GeoJSON to WKT
// (spec.md §4.8b, grounded on original_source/src/utils/geometry.py),
// decimal columns are normalized to an exact decimal.Decimal so the
// target driver never rounds through float64, and binary columns are
// canonicalized to []byte. Batch columns are matched to schema columns
// by name, so a batch carrying only some of the table's columns (a
// delete batch's key columns) is coerced correctly. Columns needing no
// coercion pass through unchanged, matching warehouse.Identity's
// zero-cost default.
func CoerceBatch(sourceSchema warehouse.Schema) warehouse.BatchFunc {
	geomCols := GeometryColumns(sourceSchema)
	decimalCols := DecimalColumns(sourceSchema)
	binaryCols := BinaryColumns(sourceSchema)

	if len(geomCols) == 0 && len(decimalCols) == 0 && len(binaryCols) == 0 {
		return warehouse.Identity
	}

	return func(b warehouse.Batch) (warehouse.Batch, error) {
		pos := make(map[string]int, len(b.Columns))
		for i, name := range b.Columns {
			pos[name] = i
		}
		inBatch := func(cols []int) []int {
			var idx []int
			for _, c := range cols {
				if i, ok := pos[sourceSchema[c].Name]; ok {
					idx = append(idx, i)
				}
			}
			return idx
		}
		geomIdx, decimalIdx, binaryIdx := inBatch(geomCols), inBatch(decimalCols), inBatch(binaryCols)

		out := warehouse.Batch{Columns: b.Columns, Rows: make([][]interface{}, len(b.Rows))}
		for r, row := range b.Rows {
			newRow := make([]interface{}, len(row))
			copy(newRow, row)
			for _, c := range geomIdx {
				v, err := coerceGeometry(newRow[c])
				if err != nil {
					return warehouse.Batch{}, fmt.Errorf("row %d column %d: %w", r, c, err)
				}
				newRow[c] = v
			}
			for _, c := range decimalIdx {
				v, err := coerceDecimal(newRow[c])
				if err != nil {
					return warehouse.Batch{}, fmt.Errorf("row %d column %d: %w", r, c, err)
				}
				newRow[c] = v
			}
			for _, c := range binaryIdx {
				v, err := coerceBinary(newRow[c])
				if err != nil {
					return warehouse.Batch{}, fmt.Errorf("row %d column %d: %w", r, c, err)
				}
				newRow[c] = v
			}
			out.Rows[r] = newRow
		}
		return out, nil
	}
}

// coerceGeometry converts a GeoJSON string (Snowflake's GEOGRAPHY/
// GEOMETRY driver representation) into its WKT equivalent, which
// DuckDB's spatial-extension GEOMETRY column casts from on insert.
func coerceGeometry(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("geometry value is %T, want string (GeoJSON)", v)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	geom, err := geojson.UnmarshalGeometry([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("unmarshalling GeoJSON geometry: %w", err)
	}
	return wkt.MarshalString(geom.Geometry()), nil
}

// coerceDecimal normalizes any numeric driver representation (string,
// float64, or an already-decimal.Decimal) into a decimal.Decimal, so
// the value survives the source/target boundary at full precision
// instead of through a lossy float64 round-trip.
func coerceDecimal(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return nil, fmt.Errorf("parsing decimal %q: %w", t, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	default:
		return nil, fmt.Errorf("decimal value is unsupported type %T", v)
	}
}

// coerceBinary canonicalizes a binary driver representation into a
// plain []byte. Snowflake's driver surfaces BINARY columns as
// hex-encoded strings in some paths and raw []byte in others.
func coerceBinary(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		b, err := hex.DecodeString(strings.TrimPrefix(t, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decoding hex binary %q: %w", t, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("binary value is unsupported type %T", v)
	}
}
