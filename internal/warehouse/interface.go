package warehouse

import "context"

// Role is which side of a replication cycle a warehouse is playing.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// WarehouseKind identifies a warehouse backend implementation, used as
// the registry key (spec.md §9's factory-by-kind design note).
type WarehouseKind string

const (
	KindSnowflake WarehouseKind = "snowflake"
	KindDuckDB    WarehouseKind = "duckdb"
)

// ConnectionConfig carries the fields a warehouse connection needs,
// decoded from the `source`/`target` blocks of the YAML config
// (trimmed from the teacher's adapter.ConnectionConfig down to what a
// two-backend CDC engine actually uses).
type ConnectionConfig struct {
	Kind      WarehouseKind
	Host      string
	Port      int
	Account   string
	Database  string
	Warehouse string
	Role      string
	Username  string
	Password  string
	// Path is the on-disk file for file-backed warehouses (DuckDB).
	Path string
	// Options holds any backend-specific field the common struct
	// doesn't name.
	Options map[string]interface{}
}

// BatchSeq is a lazy, pull-style iterator over a source's change or
// snapshot rows. Callers must call Close exactly once, on every exit
// path, whether or not iteration ran to completion (spec.md §9).
type BatchSeq interface {
	// Next advances to the next batch. Returns false at end of data or
	// on error; callers must check Err after a false return.
	Next(ctx context.Context) bool
	// Batch returns the batch most recently made available by Next.
	Batch() Batch
	// Err returns the error, if any, that caused Next to return false.
	Err() error
	// Close releases the underlying cursor/statement. Idempotent.
	Close() error
}

// Warehouse is the single polymorphic contract every backend
// implements, playing either role (spec.md §4.2). A backend asked to
// play a role or operation it does not implement returns a
// NotSupported error.
//
// Transaction discipline: Begin/Commit/Rollback bracket a span of
// calls the way spec.md §4.5's state machine requires — a single
// Begin may be held open across several subsequent calls (e.g. the
// target's TruncateTable, ProcessInsertBatches, and UpdateCDCTrackers
// all run inside one Begin..Commit span). Connect/Close govern the
// underlying pool and are independent of any transaction.
type Warehouse interface {
	// Kind identifies this backend for logging and registry lookup.
	Kind() WarehouseKind

	// Connect establishes the underlying database/sql connection pool.
	// Close releases it. Both safe to call regardless of role.
	Connect(ctx context.Context, cfg ConnectionConfig) error
	Close() error

	// Begin starts a transaction, held open until Commit or Rollback.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// GetSchema introspects a table's live column/key structure from
	// the warehouse's information-schema equivalent. Read-only; runs in
	// the currently open transaction when there is one.
	GetSchema(ctx context.Context, table TableDescriptor) (Schema, error)

	// GetChangeTrackingSchemaFQN returns the schema this backend's own
	// CDC objects live under, qualified by database where the backend
	// has one: the source's database.schema for stream/staging objects,
	// or the target's bare metadata schema (spec.md §4.2).
	GetChangeTrackingSchemaFQN() string

	// SupportedCDCPolicies reports which of the three CDC policies this
	// backend can participate in while playing its role (spec.md §4.2).
	// Informational; consulted by setup-time validation.
	SupportedCDCPolicies() []CDCPolicy

	// AuthType names the authentication mechanism the current
	// connection uses, for logging and diagnostics (spec.md §4.2,
	// informational).
	AuthType() string

	// ExecuteQuery runs sql directly against the currently open
	// connection or transaction, optionally returning the result rows
	// as a Batch. Reserved for tests and setup tooling (spec.md §4.2).
	ExecuteQuery(ctx context.Context, sql string, returnRows bool) (*Batch, error)

	// --- Setup / DDL (spec.md §4.3, §4.4) ---

	// SetupEnvironment provisions table's stream and staging table (for
	// stream policies) in the currently open source transaction. A
	// no-op for FULL_REFRESH beyond validating the table exists.
	// replaceExisting recreates any pre-existing stream/staging objects.
	SetupEnvironment(ctx context.Context, table TableDescriptor, schema Schema, replaceExisting bool) error

	// EnsureMetadataTables creates melchi's own bookkeeping tables
	// (captured_tables, source_columns, etl_events) if absent, in the
	// currently open target transaction.
	EnsureMetadataTables(ctx context.Context) error

	// CreateTable materializes table on the target per schema (already
	// type-mapped), including the surrogate key column when
	// schema.RequiresSurrogateKey returns true for table.Policy, and
	// upserts its captured_tables/source_columns rows. Runs in the
	// currently open target transaction.
	CreateTable(ctx context.Context, table TableDescriptor, schema Schema, replaceExisting bool) error

	// --- Target data plane (spec.md §4.4) ---

	// TruncateTable empties table on the target, in the currently open
	// target transaction. FULL_REFRESH only.
	TruncateTable(ctx context.Context, table TableDescriptor) error

	// ProcessInsertBatches drains seq, applying normalize to each batch,
	// and appends the resulting rows to table, in the currently open
	// target transaction.
	ProcessInsertBatches(ctx context.Context, table TableDescriptor, seq BatchSeq, normalize BatchFunc) (rowsApplied int64, err error)

	// ProcessDeleteBatches drains seq, applying normalize to each batch,
	// and removes matching rows (by EffectiveKey) from table, in the
	// currently open target transaction. STANDARD_STREAM only.
	ProcessDeleteBatches(ctx context.Context, table TableDescriptor, seq BatchSeq, normalize BatchFunc) (rowsApplied int64, err error)

	// UpdateCDCTrackers refreshes captured_tables.updated_at and appends
	// an etl_events row for table, in the currently open target
	// transaction.
	UpdateCDCTrackers(ctx context.Context, table TableDescriptor, etlID string) error

	// GetETLIDs returns the distinct etl_ids already recorded as applied
	// for table. Read-only; runs in the currently open target transaction
	// when there is one.
	GetETLIDs(ctx context.Context, table TableDescriptor) ([]string, error)

	// --- Source data plane (spec.md §4.3) ---

	// ExtractFullRefresh returns a lazy iterator over table's full
	// contents. Runs outside any transaction (read-only).
	ExtractFullRefresh(ctx context.Context, table TableDescriptor) (BatchSeq, error)

	// PrepareStreamIngestion purges staging rows whose etl_id is in
	// completedETLIDs, then drains the live stream into staging,
	// stamping each drained row with newETLID in the same statement.
	// Reports whether any rows were staged. An implementation may run
	// this in a transaction of its own that commits before it returns,
	// apart from any span opened by Begin; the Snowflake backend does.
	PrepareStreamIngestion(ctx context.Context, table TableDescriptor, newETLID string, completedETLIDs []string) (hasRows bool, err error)

	// GetDeleteBatchesForStream returns a lazy iterator over staging
	// rows tagged with action = DELETE for the cycle's etl_id. Runs in
	// the currently open source transaction. STANDARD_STREAM only.
	GetDeleteBatchesForStream(ctx context.Context, table TableDescriptor, etlID string) (BatchSeq, error)

	// GetInsertBatchesForStream returns a lazy iterator over staging
	// rows tagged with action = INSERT for the cycle's etl_id. Runs in
	// the currently open source transaction.
	GetInsertBatchesForStream(ctx context.Context, table TableDescriptor, etlID string) (BatchSeq, error)

	// CleanupSource truncates the staging rows tagged with etlID,
	// in the currently open source transaction; called only after the
	// target side is already durable (spec.md §5 "commit target first,
	// then source").
	CleanupSource(ctx context.Context, table TableDescriptor, etlID string) error
}
