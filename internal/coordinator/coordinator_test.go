package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanwith/melchi/internal/melchilog"
	"github.com/ryanwith/melchi/internal/warehouse"
)

// --- fakeBatchSeq: the simplest possible BatchSeq, wrapping at most
// one pre-built batch, matching the "finite lazy sequence" contract
// without a real cursor.

type fakeBatchSeq struct {
	batches []warehouse.Batch
	idx     int
}

func singleBatchSeq(cols []string, rows [][]interface{}) *fakeBatchSeq {
	if len(rows) == 0 {
		return &fakeBatchSeq{}
	}
	return &fakeBatchSeq{batches: []warehouse.Batch{{Columns: cols, Rows: rows}}}
}

func (s *fakeBatchSeq) Next(ctx context.Context) bool {
	if s.idx >= len(s.batches) {
		return false
	}
	s.idx++
	return true
}
func (s *fakeBatchSeq) Batch() warehouse.Batch { return s.batches[s.idx-1] }
func (s *fakeBatchSeq) Err() error             { return nil }
func (s *fakeBatchSeq) Close() error           { return nil }

func rowKey(row map[string]interface{}, keyCols []string) string {
	key := ""
	for _, c := range keyCols {
		key += "|" + asString(row[c])
	}
	return key
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func rowMapToBatchRow(cols []string, row map[string]interface{}) []interface{} {
	out := make([]interface{}, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}

func batchRowToMap(cols []string, vals []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		out[c] = vals[i]
	}
	return out
}

// --- fakeSource: an in-memory stand-in for the Snowflake backend,
// exercising only the source-role operations the coordinator drives.

type streamEvt struct {
	action string
	row    map[string]interface{}
}

type stagingRow struct {
	etlID  string
	action string
	row    map[string]interface{}
}

type fakeSource struct {
	schema        warehouse.Schema
	keyCols       []string
	surrogate     bool
	liveRows      map[string]map[string]interface{}
	pendingStream []streamEvt
	staging       []stagingRow

	tx              bool
	failCleanupOnce bool
}

func (s *fakeSource) columnNames() []string {
	names := make([]string, len(s.schema))
	for i, c := range s.schema {
		names[i] = c.Name
	}
	return names
}

func (s *fakeSource) Kind() warehouse.WarehouseKind                          { return "fake-source" }
func (s *fakeSource) Connect(ctx context.Context, _ warehouse.ConnectionConfig) error { return nil }
func (s *fakeSource) Close() error                                           { return nil }
func (s *fakeSource) Begin(ctx context.Context) error                        { s.tx = true; return nil }
func (s *fakeSource) Commit(ctx context.Context) error                       { s.tx = false; return nil }
func (s *fakeSource) Rollback(ctx context.Context) error                     { s.tx = false; return nil }

func (s *fakeSource) GetSchema(ctx context.Context, _ warehouse.TableDescriptor) (warehouse.Schema, error) {
	return s.schema, nil
}

func (s *fakeSource) GetChangeTrackingSchemaFQN() string { return "FAKE_DB.MELCHI_CDC" }
func (s *fakeSource) SupportedCDCPolicies() []warehouse.CDCPolicy {
	return []warehouse.CDCPolicy{warehouse.FullRefresh, warehouse.AppendOnlyStream, warehouse.StandardStream}
}
func (s *fakeSource) AuthType() string { return "FAKE" }
func (s *fakeSource) ExecuteQuery(ctx context.Context, _ string, _ bool) (*warehouse.Batch, error) {
	return nil, nil
}

func (s *fakeSource) SetupEnvironment(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.Schema, _ bool) error {
	return nil
}

func (s *fakeSource) ExtractFullRefresh(ctx context.Context, _ warehouse.TableDescriptor) (warehouse.BatchSeq, error) {
	cols := s.columnNames()
	var rows [][]interface{}
	for _, row := range s.liveRows {
		rows = append(rows, rowMapToBatchRow(cols, row))
	}
	return singleBatchSeq(cols, rows), nil
}

func (s *fakeSource) PrepareStreamIngestion(ctx context.Context, _ warehouse.TableDescriptor, newETLID string, completedETLIDs []string) (bool, error) {
	completed := make(map[string]bool, len(completedETLIDs))
	for _, id := range completedETLIDs {
		completed[id] = true
	}
	var kept []stagingRow
	for _, sr := range s.staging {
		if !completed[sr.etlID] {
			kept = append(kept, sr)
		}
	}
	s.staging = kept

	hasRows := len(s.pendingStream) > 0
	for _, evt := range s.pendingStream {
		s.staging = append(s.staging, stagingRow{etlID: newETLID, action: evt.action, row: evt.row})
	}
	s.pendingStream = nil
	return hasRows, nil
}

func (s *fakeSource) GetDeleteBatchesForStream(ctx context.Context, _ warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	var rows [][]interface{}
	for _, sr := range s.staging {
		if sr.etlID == etlID && sr.action == "DELETE" {
			rows = append(rows, rowMapToBatchRow(s.keyCols, sr.row))
		}
	}
	return singleBatchSeq(s.keyCols, rows), nil
}

func (s *fakeSource) GetInsertBatchesForStream(ctx context.Context, _ warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	cols := s.columnNames()
	if s.surrogate {
		cols = append(cols, warehouse.SurrogateKeyColumn)
	}
	var rows [][]interface{}
	for _, sr := range s.staging {
		if sr.etlID == etlID && sr.action == "INSERT" {
			rows = append(rows, rowMapToBatchRow(cols, sr.row))
		}
	}
	return singleBatchSeq(cols, rows), nil
}

func (s *fakeSource) CleanupSource(ctx context.Context, _ warehouse.TableDescriptor, etlID string) error {
	if s.failCleanupOnce {
		s.failCleanupOnce = false
		return errors.New("injected cleanup failure")
	}
	var kept []stagingRow
	for _, sr := range s.staging {
		if sr.etlID != etlID {
			kept = append(kept, sr)
		}
	}
	s.staging = kept
	return nil
}

// Target-role methods: fakeSource plays RoleSource only.
func (s *fakeSource) EnsureMetadataTables(ctx context.Context) error { return errUnsupported }
func (s *fakeSource) CreateTable(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.Schema, _ bool) error {
	return errUnsupported
}
func (s *fakeSource) TruncateTable(ctx context.Context, _ warehouse.TableDescriptor) error {
	return errUnsupported
}
func (s *fakeSource) ProcessInsertBatches(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.BatchSeq, _ warehouse.BatchFunc) (int64, error) {
	return 0, errUnsupported
}
func (s *fakeSource) ProcessDeleteBatches(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.BatchSeq, _ warehouse.BatchFunc) (int64, error) {
	return 0, errUnsupported
}
func (s *fakeSource) UpdateCDCTrackers(ctx context.Context, _ warehouse.TableDescriptor, _ string) error {
	return errUnsupported
}
func (s *fakeSource) GetETLIDs(ctx context.Context, _ warehouse.TableDescriptor) ([]string, error) {
	return nil, errUnsupported
}

var errUnsupported = errors.New("fake: operation not supported by this role")

// --- fakeTarget: an in-memory stand-in for the DuckDB backend. Begin
// snapshots the committed state into a working copy; Commit publishes
// it; Rollback discards it — giving the fake real transactional
// isolation without a database underneath.

type fakeTarget struct {
	keyCols []string

	committedRows      map[string]map[string]interface{}
	committedETLEvents []string
	committedUpdatedAt int

	working      map[string]map[string]interface{}
	workingEvts  []string
	workingUpdAt int
	tx           bool

	failCommitOnce bool
}

func newFakeTarget(keyCols []string) *fakeTarget {
	return &fakeTarget{keyCols: keyCols, committedRows: map[string]map[string]interface{}{}}
}

func (t *fakeTarget) Kind() warehouse.WarehouseKind                          { return "fake-target" }
func (t *fakeTarget) Connect(ctx context.Context, _ warehouse.ConnectionConfig) error { return nil }
func (t *fakeTarget) Close() error                                           { return nil }

func (t *fakeTarget) Begin(ctx context.Context) error {
	t.working = make(map[string]map[string]interface{}, len(t.committedRows))
	for k, v := range t.committedRows {
		t.working[k] = v
	}
	t.workingEvts = append([]string{}, t.committedETLEvents...)
	t.workingUpdAt = t.committedUpdatedAt
	t.tx = true
	return nil
}

func (t *fakeTarget) Commit(ctx context.Context) error {
	if t.failCommitOnce {
		t.failCommitOnce = false
		t.tx = false
		return errors.New("injected commit failure")
	}
	t.committedRows = t.working
	t.committedETLEvents = t.workingEvts
	t.committedUpdatedAt = t.workingUpdAt
	t.tx = false
	return nil
}

func (t *fakeTarget) Rollback(ctx context.Context) error {
	t.working = nil
	t.tx = false
	return nil
}

func (t *fakeTarget) GetChangeTrackingSchemaFQN() string { return "melchi_metadata" }
func (t *fakeTarget) SupportedCDCPolicies() []warehouse.CDCPolicy {
	return []warehouse.CDCPolicy{warehouse.FullRefresh, warehouse.AppendOnlyStream, warehouse.StandardStream}
}
func (t *fakeTarget) AuthType() string { return "FAKE" }
func (t *fakeTarget) ExecuteQuery(ctx context.Context, _ string, _ bool) (*warehouse.Batch, error) {
	return nil, nil
}

func (t *fakeTarget) GetSchema(ctx context.Context, _ warehouse.TableDescriptor) (warehouse.Schema, error) {
	return nil, nil
}

func (t *fakeTarget) EnsureMetadataTables(ctx context.Context) error { return nil }
func (t *fakeTarget) CreateTable(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.Schema, _ bool) error {
	return nil
}

func (t *fakeTarget) TruncateTable(ctx context.Context, _ warehouse.TableDescriptor) error {
	t.working = map[string]map[string]interface{}{}
	return nil
}

func (t *fakeTarget) ProcessInsertBatches(ctx context.Context, _ warehouse.TableDescriptor, seq warehouse.BatchSeq, normalize warehouse.BatchFunc) (int64, error) {
	defer seq.Close()
	if normalize == nil {
		normalize = warehouse.Identity
	}
	var total int64
	for seq.Next(ctx) {
		batch, err := normalize(seq.Batch())
		if err != nil {
			return total, err
		}
		for _, vals := range batch.Rows {
			row := batchRowToMap(batch.Columns, vals)
			t.working[rowKey(row, t.keyCols)] = row
			total++
		}
	}
	return total, seq.Err()
}

func (t *fakeTarget) ProcessDeleteBatches(ctx context.Context, _ warehouse.TableDescriptor, seq warehouse.BatchSeq, normalize warehouse.BatchFunc) (int64, error) {
	defer seq.Close()
	if normalize == nil {
		normalize = warehouse.Identity
	}
	var total int64
	for seq.Next(ctx) {
		batch, err := normalize(seq.Batch())
		if err != nil {
			return total, err
		}
		for _, vals := range batch.Rows {
			row := batchRowToMap(batch.Columns, vals)
			key := rowKey(row, t.keyCols)
			if _, ok := t.working[key]; ok {
				delete(t.working, key)
				total++
			}
		}
	}
	return total, seq.Err()
}

func (t *fakeTarget) UpdateCDCTrackers(ctx context.Context, _ warehouse.TableDescriptor, etlID string) error {
	t.workingEvts = append(t.workingEvts, etlID)
	t.workingUpdAt++
	return nil
}

func (t *fakeTarget) GetETLIDs(ctx context.Context, _ warehouse.TableDescriptor) ([]string, error) {
	return append([]string{}, t.committedETLEvents...), nil
}

// Source-role methods: fakeTarget plays RoleTarget only.
func (t *fakeTarget) SetupEnvironment(ctx context.Context, _ warehouse.TableDescriptor, _ warehouse.Schema, _ bool) error {
	return errUnsupported
}
func (t *fakeTarget) ExtractFullRefresh(ctx context.Context, _ warehouse.TableDescriptor) (warehouse.BatchSeq, error) {
	return nil, errUnsupported
}
func (t *fakeTarget) PrepareStreamIngestion(ctx context.Context, _ warehouse.TableDescriptor, _ string, _ []string) (bool, error) {
	return false, errUnsupported
}
func (t *fakeTarget) GetDeleteBatchesForStream(ctx context.Context, _ warehouse.TableDescriptor, _ string) (warehouse.BatchSeq, error) {
	return nil, errUnsupported
}
func (t *fakeTarget) GetInsertBatchesForStream(ctx context.Context, _ warehouse.TableDescriptor, _ string) (warehouse.BatchSeq, error) {
	return nil, errUnsupported
}
func (t *fakeTarget) CleanupSource(ctx context.Context, _ warehouse.TableDescriptor, _ string) error {
	return errUnsupported
}

// --- test harness

func newTestCoordinator(t *testing.T, source *fakeSource, target *fakeTarget, etlIDs []string) *Coordinator {
	t.Helper()
	reg := warehouse.NewRegistry()
	reg.Register("fake-source", func() warehouse.Warehouse { return source })
	reg.Register("fake-target", func() warehouse.Warehouse { return target })

	idx := 0
	return &Coordinator{
		Registry:     reg,
		SourceConfig: warehouse.ConnectionConfig{Kind: "fake-source"},
		TargetConfig: warehouse.ConnectionConfig{Kind: "fake-target"},
		Log:          melchilog.New(),
		newETLID: func() string {
			id := etlIDs[idx]
			idx++
			return id
		},
	}
}

func rows(vals ...[2]string) map[string]map[string]interface{} {
	out := map[string]map[string]interface{}{}
	for _, v := range vals {
		out[v[0]] = map[string]interface{}{"ID": v[0], "VAL": v[1]}
	}
	return out
}

// Scenario 1 (spec.md §8): FULL_REFRESH, two cycles, target mirrors
// the source's current contents each time and trackers strictly
// advance.
func TestFullRefreshTwoCycles(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, liveRows: rows([2]string{"1", "a"}, [2]string{"2", "b"})}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.FullRefresh}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2"})

	res, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsApplied)
	assert.Len(t, target.committedRows, 2)
	assert.Len(t, target.committedETLEvents, 1)
	assert.Equal(t, 1, target.committedUpdatedAt)

	source.liveRows = rows([2]string{"2", "b"}, [2]string{"3", "c"})
	res, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsApplied)
	assert.Len(t, target.committedRows, 2)
	assert.Contains(t, target.committedRows, "|2")
	assert.Contains(t, target.committedRows, "|3")
	assert.NotContains(t, target.committedRows, "|1")
	assert.Len(t, target.committedETLEvents, 2)
	assert.Equal(t, 2, target.committedUpdatedAt)
}

// Scenario 2: STANDARD_STREAM with a declared PK; an update
// decomposes into delete-then-insert and a plain delete/insert round
// out the cycle.
func TestStandardStreamUpdateDeleteInsert(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, keyCols: []string{"ID"}}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.StandardStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2"})

	source.pendingStream = []streamEvt{
		{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a"}},
		{action: "INSERT", row: map[string]interface{}{"ID": "2", "VAL": "b"}},
	}
	_, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ID": "1", "VAL": "a"}, target.committedRows["|1"])
	assert.Equal(t, map[string]interface{}{"ID": "2", "VAL": "b"}, target.committedRows["|2"])

	source.pendingStream = []streamEvt{
		{action: "DELETE", row: map[string]interface{}{"ID": "1"}},
		{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a2"}},
		{action: "DELETE", row: map[string]interface{}{"ID": "2"}},
		{action: "INSERT", row: map[string]interface{}{"ID": "3", "VAL": "c"}},
	}
	_, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Len(t, target.committedRows, 2)
	assert.Equal(t, "a2", target.committedRows["|1"]["VAL"])
	assert.Equal(t, "c", target.committedRows["|3"]["VAL"])
	assert.NotContains(t, target.committedRows, "|2")
}

// Scenario 3: APPEND_ONLY_STREAM never applies deletes, so target
// rows only accumulate.
func TestAppendOnlyStreamIgnoresDeletes(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, keyCols: []string{"ID"}}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.AppendOnlyStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2"})

	source.pendingStream = []streamEvt{{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a"}}}
	_, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)

	source.pendingStream = []streamEvt{
		{action: "DELETE", row: map[string]interface{}{"ID": "1"}},
		{action: "INSERT", row: map[string]interface{}{"ID": "2", "VAL": "b"}},
	}
	_, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)

	assert.Len(t, target.committedRows, 2, "append-only must never apply a delete")
	assert.Contains(t, target.committedRows, "|1")
	assert.Contains(t, target.committedRows, "|2")
}

// Scenario 4: STANDARD_STREAM with no declared PK materializes the
// surrogate key on the target.
func TestStandardStreamSurrogateKey(t *testing.T) {
	schema := warehouse.Schema{{Name: "VAL"}}
	source := &fakeSource{schema: schema, keyCols: []string{warehouse.SurrogateKeyColumn}, surrogate: true}
	target := newFakeTarget([]string{warehouse.SurrogateKeyColumn})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.StandardStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2"})

	source.pendingStream = []streamEvt{
		{action: "INSERT", row: map[string]interface{}{"VAL": "dup", warehouse.SurrogateKeyColumn: "rid-1"}},
		{action: "INSERT", row: map[string]interface{}{"VAL": "dup", warehouse.SurrogateKeyColumn: "rid-2"}},
	}
	_, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, target.committedRows, 2)

	source.pendingStream = []streamEvt{{action: "DELETE", row: map[string]interface{}{warehouse.SurrogateKeyColumn: "rid-1"}}}
	_, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)
	require.Len(t, target.committedRows, 1)
	assert.Contains(t, target.committedRows, "|rid-2")
}

// Scenario 5 (spec.md §8): a cycle that fails after target.commit but
// before source.commit leaves target data applied and durable; the
// next cycle's prepare_stream_ingestion reconciles by purging the
// already-applied staging rows, converging to the same state a single
// successful cycle would have reached.
func TestHalfCommitRecoversOnNextCycle(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, keyCols: []string{"ID"}}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.StandardStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2", "etl-3"})

	source.pendingStream = []streamEvt{{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a"}}}
	_, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)
	require.Empty(t, source.staging, "staging is truncated once the cycle fully commits")

	// Cycle 2: delete-then-reinsert of id=1, but the source-side
	// cleanup is injected to fail after the target has already
	// committed.
	source.pendingStream = []streamEvt{
		{action: "DELETE", row: map[string]interface{}{"ID": "1"}},
		{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a2"}},
	}
	source.failCleanupOnce = true
	_, err = c.RunTable(context.Background(), table)
	require.Error(t, err, "cleanup_source failure must surface to the caller")

	require.Equal(t, "a2", target.committedRows["|1"]["VAL"], "target changes are durable despite the source-side failure")
	require.Len(t, target.committedETLEvents, 2)
	require.NotEmpty(t, source.staging, "the applied rows remain staged, tagged with the etl_id the target already recorded")

	// Cycle 3: no new source changes. prepare_stream_ingestion must
	// observe etl-2 among the target's completed etl_ids and purge
	// those leftover staging rows; net target change is zero.
	_, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)

	assert.Len(t, target.committedRows, 1)
	assert.Equal(t, "a2", target.committedRows["|1"]["VAL"])
	assert.Len(t, target.committedETLEvents, 3)
	assert.Empty(t, source.staging, "cycle 3 reconciles away the half-committed cycle's staging rows")
}

// A cycle that fails before target.commit must leave target state
// untouched.
func TestFailureBeforeTargetCommitLeavesStateUnchanged(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, keyCols: []string{"ID"}}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.StandardStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1"})

	source.pendingStream = []streamEvt{{action: "INSERT", row: map[string]interface{}{"ID": "1", "VAL": "a"}}}
	target.failCommitOnce = true
	_, err := c.RunTable(context.Background(), table)
	require.Error(t, err)
	assert.Empty(t, target.committedRows)
	assert.Empty(t, target.committedETLEvents)
}

// Running sync_data twice with no source changes is a no-op on data,
// but a fresh etl_events row is still permitted (spec.md §8 boundary
// behaviors "no stream delta since last cycle").
func TestNoStreamDeltaIsNoOpCommit(t *testing.T) {
	schema := warehouse.Schema{
		{Name: "ID", IsPrimaryKey: true},
		{Name: "VAL"},
	}
	source := &fakeSource{schema: schema, keyCols: []string{"ID"}}
	target := newFakeTarget([]string{"ID"})
	table := warehouse.TableDescriptor{Database: "DB", Schema: "PUBLIC", Table: "T", Policy: warehouse.StandardStream}
	c := newTestCoordinator(t, source, target, []string{"etl-1", "etl-2"})

	res, err := c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowsApplied)
	assert.Len(t, target.committedETLEvents, 1)

	res, err = c.RunTable(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.RowsApplied)
	assert.Len(t, target.committedETLEvents, 2)
	assert.Empty(t, target.committedRows)
}
