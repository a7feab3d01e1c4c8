// Package warehouse defines the cross-warehouse contract (the "Warehouse
// Capability Interface") that every backend (source or target) implements,
// plus the typed table/schema model every operation is expressed over.
package warehouse

import "strings"

// CDCPolicy is the change-propagation discipline a table is replicated
// under.
type CDCPolicy string

const (
	FullRefresh      CDCPolicy = "FULL_REFRESH"
	AppendOnlyStream CDCPolicy = "APPEND_ONLY_STREAM"
	StandardStream   CDCPolicy = "STANDARD_STREAM"
)

// ParseCDCPolicy parses a case-insensitive policy string. An empty string
// defaults to FullRefresh.
func ParseCDCPolicy(s string) (CDCPolicy, error) {
	if strings.TrimSpace(s) == "" {
		return FullRefresh, nil
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FullRefresh):
		return FullRefresh, nil
	case string(AppendOnlyStream):
		return AppendOnlyStream, nil
	case string(StandardStream):
		return StandardStream, nil
	default:
		return "", NewConfigError("cdc_type", "must be one of FULL_REFRESH, APPEND_ONLY_STREAM, STANDARD_STREAM (got %q)", s)
	}
}

// IsStream reports whether the policy requires a source-side stream and
// staging table.
func (p CDCPolicy) IsStream() bool {
	return p == AppendOnlyStream || p == StandardStream
}

// TableDescriptor identifies a replicated table and the policy it is
// replicated under.
type TableDescriptor struct {
	Database string
	Schema   string
	Table    string
	Policy   CDCPolicy
}

// Validate checks the invariants of spec.md §4.1: all three identifier
// parts non-empty, policy one of the enumerated values.
func (t TableDescriptor) Validate() error {
	if t.Database == "" || t.Schema == "" || t.Table == "" {
		return NewConfigError("table", "database, schema, and table must all be non-empty (got %q.%q.%q)", t.Database, t.Schema, t.Table)
	}
	switch t.Policy {
	case FullRefresh, AppendOnlyStream, StandardStream:
	default:
		return NewConfigError("cdc_type", "unrecognized policy %q for table %s", t.Policy, t.FullyQualifiedName())
	}
	return nil
}

// FullyQualifiedName formats the table's identifier using simple
// dot-joining; backends that need dialect-specific quoting derive their
// own quoted form from Database/Schema/Table directly.
func (t TableDescriptor) FullyQualifiedName() string {
	return t.Database + "." + t.Schema + "." + t.Table
}

// StagingTableName is the name of the source-side staging table that
// mirrors this table's columns plus CDC metadata columns, used only for
// stream policies.
func (t TableDescriptor) StagingTableName() string {
	return "MELCHI_STAGING_" + t.Schema + "_" + t.Table
}

// StreamName is the name of the source-side change-stream object over
// this table, used only for stream policies.
func (t TableDescriptor) StreamName() string {
	return "MELCHI_STREAM_" + t.Schema + "_" + t.Table
}

// SurrogateKeyColumn is the implicit key column materialized on the
// target for STANDARD_STREAM tables with no declared primary key.
const SurrogateKeyColumn = "MELCHI_ROW_ID"

// ColumnDescriptor describes a single column of a table.
type ColumnDescriptor struct {
	Name         string
	LogicalType  string // source-dialect type string
	Nullable     bool
	Default      *string
	IsPrimaryKey bool
}

// Schema is the ordered sequence of a table's columns.
type Schema []ColumnDescriptor

// PrimaryKeys returns the names of columns flagged as primary key, in
// schema order.
func (s Schema) PrimaryKeys() []string {
	var keys []string
	for _, c := range s {
		if c.IsPrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// RequiresSurrogateKey reports whether this schema, under the given
// policy, needs the implicit MELCHI_ROW_ID key materialized on the
// target (spec.md §3 "Effective Key").
func (s Schema) RequiresSurrogateKey(policy CDCPolicy) bool {
	return policy == StandardStream && len(s.PrimaryKeys()) == 0
}

// HasGeometryColumn reports whether any column's logical type looks like
// a geometry/geography type. Used by source-side setup validation (spec
// §4.3) to reject STANDARD_STREAM over geometry columns.
func (s Schema) HasGeometryColumn() bool {
	for _, c := range s {
		t := strings.ToUpper(c.LogicalType)
		if strings.Contains(t, "GEOGRAPHY") || strings.Contains(t, "GEOMETRY") {
			return true
		}
	}
	return false
}

// EffectiveKey returns the column set used to identify a row for delete
// matching: the declared primary key, or the surrogate key when one is
// required.
func (s Schema) EffectiveKey(policy CDCPolicy) []string {
	if pk := s.PrimaryKeys(); len(pk) > 0 {
		return pk
	}
	if s.RequiresSurrogateKey(policy) {
		return []string{SurrogateKeyColumn}
	}
	return nil
}

// Batch is one chunk of rows flowing between source and target, column
// order matching the Columns slice.
type Batch struct {
	Columns []string
	Rows    [][]interface{}
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Rows) }

// BatchFunc is a pure, deterministic transform applied to a batch in
// flight (the value-coercion half of the normalizer, spec.md §4.8b).
type BatchFunc func(Batch) (Batch, error)

// Identity is a BatchFunc that returns its input unchanged.
func Identity(b Batch) (Batch, error) { return b, nil }
