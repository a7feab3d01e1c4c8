package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// ExtractFullRefresh returns every row of table's base table (spec.md
// §4.3 "Full refresh"). Read-only; runs outside any transaction.
func (b *Backend) ExtractFullRefresh(ctx context.Context, table warehouse.TableDescriptor) (warehouse.BatchSeq, error) {
	stmt := fmt.Sprintf("SELECT * FROM %s", qualifiedIdent(table))
	rows, err := b.q().QueryContext(ctx, stmt)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_batches_for_full_refresh", table, err)
	}
	seq, err := newRowsBatchSeq(rows)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_batches_for_full_refresh", table, err)
	}
	return seq, nil
}

// PrepareStreamIngestion implements the three-step protocol of spec.md
// §4.3: purge rows whose etl_id already landed on the target, then
// drain the live stream into staging tagging every row with newETLID
// in the same INSERT…SELECT statement. The redundant defensive UPDATE
// the original performs after the tagged insert is intentionally
// omitted (spec.md §9 Open Question).
//
// This runs in its own transaction, independent of whatever span the
// coordinator's Begin/Commit on this connection currently holds open.
// That is deliberate: the stream's offset only advances, and the
// staging insert only becomes visible, once this commits — and it
// must commit before the coordinator's later source.Commit, which
// only wraps CleanupSource. Otherwise a crash between the target's
// commit and the source's commit would roll back the very staging
// rows the next cycle's reconciliation depends on finding (spec.md §5,
// §4.5 "half-committed" recovery).
func (b *Backend) PrepareStreamIngestion(ctx context.Context, table warehouse.TableDescriptor, newETLID string, completedETLIDs []string) (bool, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, warehouse.Wrap(warehouse.Connection, string(warehouse.KindSnowflake), "prepare_stream_ingestion", table, err)
	}
	hasRows, err := b.prepareStreamIngestionTx(ctx, tx, table, newETLID, completedETLIDs)
	if err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "prepare_stream_ingestion", table, err)
	}
	return hasRows, nil
}

func (b *Backend) prepareStreamIngestionTx(ctx context.Context, tx *sql.Tx, table warehouse.TableDescriptor, newETLID string, completedETLIDs []string) (bool, error) {
	if len(completedETLIDs) > 0 {
		placeholders := make([]string, len(completedETLIDs))
		args := make([]interface{}, len(completedETLIDs))
		for i, id := range completedETLIDs {
			placeholders[i] = "?"
			args[i] = id
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", b.stagingIdent(table), quoteIdent(etlIDColumn), strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return false, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "prepare_stream_ingestion", table, err)
		}
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s
SELECT *, ?
FROM %s`,
		b.stagingIdent(table), b.streamIdent(table),
	)
	res, err := tx.ExecContext(ctx, insert, newETLID)
	if err != nil {
		return false, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "prepare_stream_ingestion", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "prepare_stream_ingestion", table, err)
	}
	return n > 0, nil
}

// GetDeleteBatchesForStream selects the effective-key columns (the
// declared primary key, or the source row identity aliased
// MELCHI_ROW_ID when there is none) of staging rows tagged
// action = 'DELETE' for etlID (spec.md §4.3 "Extraction"). Runs in the
// currently open source transaction.
func (b *Backend) GetDeleteBatchesForStream(ctx context.Context, table warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	schema, err := b.GetSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	var keyCols []string
	for _, pk := range schema.PrimaryKeys() {
		keyCols = append(keyCols, quoteIdent(pk))
	}
	if len(keyCols) == 0 {
		keyCols = []string{quoteIdent(rowIDColumn) + " AS " + quoteIdent(warehouse.SurrogateKeyColumn)}
	}
	stmt := fmt.Sprintf(
		`SELECT %s
FROM %s
WHERE %s = 'DELETE' AND %s = ?`,
		strings.Join(keyCols, ", "),
		b.stagingIdent(table), quoteIdent(actionColumn), quoteIdent(etlIDColumn),
	)
	rows, err := b.q().QueryContext(ctx, stmt, etlID)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_delete_batches_for_stream", table, err)
	}
	seq, err := newRowsBatchSeq(rows)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_delete_batches_for_stream", table, err)
	}
	return seq, nil
}

// GetInsertBatchesForStream selects all base columns plus the
// surrogate row identity (aliased MELCHI_ROW_ID) of staging rows
// tagged action = 'INSERT' for etlID (spec.md §4.3 "Extraction"). Runs
// in the currently open source transaction.
func (b *Backend) GetInsertBatchesForStream(ctx context.Context, table warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	stmt := fmt.Sprintf(
		`SELECT * EXCLUDE (%s, %s, %s, %s) , %s AS %s
FROM %s
WHERE %s = 'INSERT' AND %s = ?`,
		quoteIdent(actionColumn), quoteIdent(isUpdateColumn), quoteIdent(rowIDColumn), quoteIdent(etlIDColumn),
		quoteIdent(rowIDColumn), quoteIdent(warehouse.SurrogateKeyColumn),
		b.stagingIdent(table), quoteIdent(actionColumn), quoteIdent(etlIDColumn),
	)
	rows, err := b.q().QueryContext(ctx, stmt, etlID)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_insert_batches_for_stream", table, err)
	}
	seq, err := newRowsBatchSeq(rows)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "get_insert_batches_for_stream", table, err)
	}
	return seq, nil
}

// CleanupSource truncates the staging rows tagged etlID, called only
// after the target side has already committed (spec.md §5). A missing
// staging table is reported as MissingObject, directing the operator
// to re-run setup, distinguished from any other failure.
func (b *Backend) CleanupSource(ctx context.Context, table warehouse.TableDescriptor, etlID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", b.stagingIdent(table), quoteIdent(etlIDColumn))
	if _, err := b.q().ExecContext(ctx, stmt, etlID); err != nil {
		if isUndefinedObject(err) {
			return warehouse.NewMissingObject(string(warehouse.KindSnowflake), "cleanup_source", table, "staging table")
		}
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "cleanup_source", table, err)
	}
	return nil
}

// isUndefinedObject reports whether err looks like Snowflake's
// "object does not exist" class of error (SQL state 02000/42S02-ish
// messages from the gosnowflake driver), without depending on driver
// internals beyond string matching, the same heuristic the teacher's
// adapters use for distinguishing "not found" from other DB errors.
func isUndefinedObject(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found") || strings.Contains(msg, "invalid identifier")
}
