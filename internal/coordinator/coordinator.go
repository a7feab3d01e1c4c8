// Package coordinator implements the Ingestion Coordinator: the
// per-table state machine that drives one sync cycle end-to-end
// across a source and target warehouse with transactional safety,
// at-least-once delivery, and idempotent replay on partial failure.
package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ryanwith/melchi/internal/melchilog"
	"github.com/ryanwith/melchi/internal/normalizer"
	"github.com/ryanwith/melchi/internal/warehouse"
)

// Coordinator drives sync cycles for a fixed (source, target) pair of
// connection configurations, one table at a time (spec.md §4.5).
// Tables are processed sequentially; a failure on one table does not
// abort the others (spec.md §4.5 "Cross-table independence").
type Coordinator struct {
	Registry     *warehouse.Registry
	SourceConfig warehouse.ConnectionConfig
	TargetConfig warehouse.ConnectionConfig
	Log          *melchilog.Logger

	// newETLID generates a fresh cycle identifier; overridable in tests.
	newETLID func() string
}

// New constructs a Coordinator using the process-wide default
// warehouse registry and google/uuid for etl_id generation.
func New(source, target warehouse.ConnectionConfig, log *melchilog.Logger) *Coordinator {
	return &Coordinator{
		Registry:     warehouse.Default,
		SourceConfig: source,
		TargetConfig: target,
		Log:          log,
		newETLID:     uuid.NewString,
	}
}

// Result summarizes one table's cycle for the caller (CLI progress
// reporting).
type Result struct {
	Table       warehouse.TableDescriptor
	ETLID       string
	RowsApplied int64
}

// RunTable executes one full sync cycle for table: connect both
// sides, dispatch on policy, drive the fixed sequence of operations in
// spec.md §4.5, and disconnect both sides on every exit path.
func (c *Coordinator) RunTable(ctx context.Context, table warehouse.TableDescriptor) (Result, error) {
	etlID := c.idGen()()
	logCtx := c.Log.WithFields(map[string]string{
		"table":  table.FullyQualifiedName(),
		"etl_id": etlID,
		"policy": string(table.Policy),
	})

	// S0 -> S1: connect both sides.
	source, err := c.Registry.Connect(ctx, c.SourceConfig)
	if err != nil {
		return Result{}, fmt.Errorf("connecting source: %w", err)
	}
	defer source.Close()

	target, err := c.Registry.Connect(ctx, c.TargetConfig)
	if err != nil {
		return Result{}, fmt.Errorf("connecting target: %w", err)
	}
	defer target.Close()

	sourceSchema, err := source.GetSchema(ctx, table)
	if err != nil {
		return Result{}, fmt.Errorf("reading source schema: %w", err)
	}
	normalize := normalizer.CoerceBatch(sourceSchema)

	logCtx.Info("starting cycle")

	var rowsApplied int64
	if table.Policy == warehouse.FullRefresh {
		rowsApplied, err = c.runFullRefresh(ctx, source, target, table, normalize, etlID, logCtx)
	} else {
		rowsApplied, err = c.runStream(ctx, source, target, table, normalize, etlID, logCtx)
	}
	if err != nil {
		logCtx.Error("cycle failed: %v", err)
		return Result{Table: table, ETLID: etlID}, err
	}
	logCtx.Info("cycle complete (%d rows applied)", rowsApplied)
	return Result{Table: table, ETLID: etlID, RowsApplied: rowsApplied}, nil
}

func (c *Coordinator) idGen() func() string {
	if c.newETLID != nil {
		return c.newETLID
	}
	return uuid.NewString
}

// rollbackBoth is the shared failure path for any error before the
// target's commit point: neither side's changes become visible, and
// the cycle is safe to retry immediately (spec.md §4.5 "Failure
// semantics and recovery").
func rollbackBoth(ctx context.Context, source, target warehouse.Warehouse) {
	_ = target.Rollback(ctx)
	_ = source.Rollback(ctx)
}

// runFullRefresh drives states S1..S7 of spec.md §4.5's full-refresh
// protocol: target.begin, truncate, drain the source's full snapshot
// into the target, update trackers, commit. The source plays no
// transactional role here — extraction is read-only (spec.md §4.2
// ExtractFullRefresh "runs outside any transaction").
func (c *Coordinator) runFullRefresh(ctx context.Context, source, target warehouse.Warehouse, table warehouse.TableDescriptor, normalize warehouse.BatchFunc, etlID string, log *melchilog.Context) (int64, error) {
	if err := target.Begin(ctx); err != nil {
		return 0, fmt.Errorf("target begin: %w", err)
	}

	rowsApplied, err := c.runFullRefreshBody(ctx, source, target, table, normalize, etlID, log)
	if err != nil {
		_ = target.Rollback(ctx)
		return 0, err
	}

	if err := target.Commit(ctx); err != nil {
		_ = target.Rollback(ctx)
		return 0, fmt.Errorf("target commit: %w", err)
	}
	log.Info("target committed")
	return rowsApplied, nil
}

func (c *Coordinator) runFullRefreshBody(ctx context.Context, source, target warehouse.Warehouse, table warehouse.TableDescriptor, normalize warehouse.BatchFunc, etlID string, log *melchilog.Context) (int64, error) {
	// S2 -> S3: truncate.
	if err := target.TruncateTable(ctx, table); err != nil {
		return 0, fmt.Errorf("truncating target table: %w", err)
	}
	log.Info("truncated target table")

	// S3 -> S4: extract the full source snapshot and apply it.
	seq, err := source.ExtractFullRefresh(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("extracting full refresh batches: %w", err)
	}
	rowsApplied, err := target.ProcessInsertBatches(ctx, table, seq, normalize)
	if err != nil {
		return 0, fmt.Errorf("applying insert batches: %w", err)
	}
	log.Info("applied %d rows", rowsApplied)

	// S4 -> S5: update bookkeeping.
	if err := target.UpdateCDCTrackers(ctx, table, etlID); err != nil {
		return rowsApplied, fmt.Errorf("updating cdc trackers: %w", err)
	}
	return rowsApplied, nil
}

// runStream drives states S1..S9 of spec.md §4.5's stream protocol
// (standard and append-only). Both transactions are held open
// simultaneously through the target's commit; the target is always
// committed before the source (spec.md §5, §9 "Two-transaction
// choreography"), which is what makes the next cycle's
// prepare_stream_ingestion reconciliation (spec.md §4.5 "idempotence
// law") able to recover from any crash between the two commits.
func (c *Coordinator) runStream(ctx context.Context, source, target warehouse.Warehouse, table warehouse.TableDescriptor, normalize warehouse.BatchFunc, etlID string, log *melchilog.Context) (int64, error) {
	if err := target.Begin(ctx); err != nil {
		return 0, fmt.Errorf("target begin: %w", err)
	}
	if err := source.Begin(ctx); err != nil {
		_ = target.Rollback(ctx)
		return 0, fmt.Errorf("source begin: %w", err)
	}

	rowsApplied, err := c.runStreamTargetPhase(ctx, source, target, table, normalize, etlID, log)
	if err != nil {
		rollbackBoth(ctx, source, target)
		return 0, err
	}

	// S6 -> S7: the commit point. Once this succeeds, the applied rows
	// and the etl_events row recording etlID are durable on the target
	// regardless of what happens next.
	if err := target.Commit(ctx); err != nil {
		rollbackBoth(ctx, source, target)
		return 0, fmt.Errorf("target commit: %w", err)
	}
	log.Info("target committed")

	// S7 -> S8: truncate the staging rows this cycle consumed. A
	// failure here (or at source.Commit below) leaves the cycle
	// "half-committed" (spec.md §4.5): target data and bookkeeping are
	// already durable, so this is safe to roll back and retry — the
	// next cycle's PrepareStreamIngestion will observe etlID among the
	// target's completed etl_ids and purge these same staging rows
	// before draining any new delta.
	if err := source.CleanupSource(ctx, table, etlID); err != nil {
		_ = source.Rollback(ctx)
		return rowsApplied, fmt.Errorf("cleaning up source staging (target already committed; next cycle will reconcile etl_id %s): %w", etlID, err)
	}

	// S8 -> S9: commit the source side.
	if err := source.Commit(ctx); err != nil {
		return rowsApplied, fmt.Errorf("source commit (target already committed; next cycle will reconcile etl_id %s): %w", etlID, err)
	}
	log.Info("source committed")
	return rowsApplied, nil
}

// runStreamTargetPhase drives S2..S6: reconcile staging against the
// target's completed etl_ids, apply deletes (standard-stream only,
// spec.md §4.4 "APPEND_ONLY_STREAM ... the coordinator must not call
// the delete path for this policy"), apply inserts, then update
// trackers. Deletes are always applied before inserts so a
// delete-then-reinsert of the same key in one stream snapshot leaves
// the row present, and an insert-then-delete leaves it absent (spec.md
// §4.5 "Ordering guarantee").
func (c *Coordinator) runStreamTargetPhase(ctx context.Context, source, target warehouse.Warehouse, table warehouse.TableDescriptor, normalize warehouse.BatchFunc, etlID string, log *melchilog.Context) (int64, error) {
	completed, err := target.GetETLIDs(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("reading completed etl_ids: %w", err)
	}

	if _, err := source.PrepareStreamIngestion(ctx, table, etlID, completed); err != nil {
		return 0, fmt.Errorf("preparing stream ingestion: %w", err)
	}
	log.Info("staged stream delta")

	var rowsApplied int64
	if table.Policy == warehouse.StandardStream {
		deleteSeq, err := source.GetDeleteBatchesForStream(ctx, table, etlID)
		if err != nil {
			return 0, fmt.Errorf("reading delete batches: %w", err)
		}
		deleted, err := target.ProcessDeleteBatches(ctx, table, deleteSeq, normalize)
		if err != nil {
			return 0, fmt.Errorf("applying delete batches: %w", err)
		}
		rowsApplied += deleted
		log.Info("applied %d deletes", deleted)
	}

	insertSeq, err := source.GetInsertBatchesForStream(ctx, table, etlID)
	if err != nil {
		return rowsApplied, fmt.Errorf("reading insert batches: %w", err)
	}
	inserted, err := target.ProcessInsertBatches(ctx, table, insertSeq, normalize)
	if err != nil {
		return rowsApplied, fmt.Errorf("applying insert batches: %w", err)
	}
	rowsApplied += inserted
	log.Info("applied %d inserts", inserted)

	if err := target.UpdateCDCTrackers(ctx, table, etlID); err != nil {
		return rowsApplied, fmt.Errorf("updating cdc trackers: %w", err)
	}
	return rowsApplied, nil
}
