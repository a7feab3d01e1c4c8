// Package normalizer implements the Type & Value Normalizer (spec.md
// §4.8): a static source-dialect-to-target-dialect type mapping, and a
// per-batch value coercion pipeline that runs over every batch
// crossing the source/target boundary.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// typeRule maps one Snowflake logical type to its DuckDB equivalent.
// Keyed by the upper-cased, parenthetical-stripped Snowflake type name
// (e.g. "NUMBER(38,0)" keys on "NUMBER").
type typeRule func(sourceType string) string

// snowflakeToDuckDB is the static dialect-pair function table (spec.md
// §9: "the mapping is a dialect-pair function", not a generic N×N
// matrix since melchi only ever normalizes one direction).
var snowflakeToDuckDB = map[string]typeRule{
	"NUMBER":                    passthroughPrecision("DECIMAL", "38", "0"),
	"DECIMAL":                   passthroughPrecision("DECIMAL", "38", "0"),
	"NUMERIC":                   passthroughPrecision("DECIMAL", "38", "0"),
	"INT":                       constant("BIGINT"),
	"INTEGER":                   constant("BIGINT"),
	"BIGINT":                    constant("BIGINT"),
	"SMALLINT":                  constant("BIGINT"),
	"TINYINT":                   constant("BIGINT"),
	"BYTEINT":                   constant("BIGINT"),
	"FLOAT":                     constant("DOUBLE"),
	"FLOAT4":                    constant("DOUBLE"),
	"FLOAT8":                    constant("DOUBLE"),
	"DOUBLE":                    constant("DOUBLE"),
	"DOUBLE PRECISION":          constant("DOUBLE"),
	"REAL":                      constant("DOUBLE"),
	"VARCHAR":                   passthroughLength("VARCHAR"),
	"CHAR":                      passthroughLength("VARCHAR"),
	"CHARACTER":                 passthroughLength("VARCHAR"),
	"STRING":                    constant("VARCHAR"),
	"TEXT":                      constant("VARCHAR"),
	"BOOLEAN":                   constant("BOOLEAN"),
	"DATE":                      constant("DATE"),
	"DATETIME":                  constant("TIMESTAMP"),
	"TIMESTAMP":                 constant("TIMESTAMP"),
	"TIMESTAMP_NTZ":             constant("TIMESTAMP"),
	"TIMESTAMP_LTZ":             constant("TIMESTAMP WITH TIME ZONE"),
	"TIMESTAMP_TZ":              constant("TIMESTAMP WITH TIME ZONE"),
	"TIME":                      constant("TIME"),
	"BINARY":                    constant("BLOB"),
	"VARBINARY":                 constant("BLOB"),
	"VARIANT":                   constant("JSON"),
	"OBJECT":                    constant("JSON"),
	"ARRAY":                     constant("JSON"),
	"GEOGRAPHY":                 constant("GEOMETRY"),
	"GEOMETRY":                  constant("GEOMETRY"),
	"VECTOR":                    vectorArray(),
}

func constant(target string) typeRule {
	return func(string) string { return target }
}

// passthroughPrecision carries a "(p,s)" precision/scale suffix
// through to target, substituting defaults when the source type named
// no precision at all (bare "NUMBER").
func passthroughPrecision(target, defaultPrecision, defaultScale string) typeRule {
	return func(sourceType string) string {
		p, s, ok := splitPrecisionScale(sourceType)
		if !ok {
			p, s = defaultPrecision, defaultScale
		}
		return fmt.Sprintf("%s(%s,%s)", target, p, s)
	}
}

// passthroughLength carries a "(n)" length suffix through to target,
// dropping it entirely when absent since DuckDB's VARCHAR is unbounded.
func passthroughLength(target string) typeRule {
	return func(sourceType string) string {
		if n, ok := splitLength(sourceType); ok {
			return fmt.Sprintf("%s(%s)", target, n)
		}
		return target
	}
}

// vectorArray maps a Snowflake VECTOR(type, length) into DuckDB's
// fixed-length array syntax "TYPE[length]" (spec.md §4.8a "vector
// types map to fixed-length arrays of the element type"). The element
// type name is carried through verbatim, same as the original ground
// truth's snowflake_to_duckdb mapping.
func vectorArray() typeRule {
	return func(sourceType string) string {
		elemType, length, ok := splitPrecisionScale(sourceType)
		if !ok {
			return "VARCHAR"
		}
		return fmt.Sprintf("%s[%s]", elemType, length)
	}
}

func splitPrecisionScale(sourceType string) (precision, scale string, ok bool) {
	open := strings.IndexByte(sourceType, '(')
	close := strings.IndexByte(sourceType, ')')
	if open < 0 || close < open {
		return "", "", false
	}
	inner := sourceType[open+1 : close]
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

func splitLength(sourceType string) (string, bool) {
	open := strings.IndexByte(sourceType, '(')
	close := strings.IndexByte(sourceType, ')')
	if open < 0 || close < open {
		return "", false
	}
	return strings.TrimSpace(sourceType[open+1 : close]), true
}

// baseTypeName strips a "(...)" suffix and upper-cases, producing the
// map key for snowflakeToDuckDB.
func baseTypeName(sourceType string) string {
	t := strings.ToUpper(strings.TrimSpace(sourceType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// MapColumnType returns the DuckDB column type for a Snowflake logical
// type string. Unrecognized types pass through as VARCHAR, the same
// conservative fallback the teacher's schema-translation adapters use
// for types they don't explicitly enumerate.
func MapColumnType(sourceType string) string {
	rule, ok := snowflakeToDuckDB[baseTypeName(sourceType)]
	if !ok {
		return "VARCHAR"
	}
	return rule(sourceType)
}

// MapSchema translates a source Schema's LogicalType fields into their
// DuckDB equivalents, leaving Name/Nullable/Default/IsPrimaryKey
// untouched. Used by the schema synchronizer before CreateTable.
func MapSchema(source warehouse.Schema) warehouse.Schema {
	out := make(warehouse.Schema, len(source))
	for i, c := range source {
		out[i] = c
		out[i].LogicalType = MapColumnType(c.LogicalType)
	}
	return out
}
