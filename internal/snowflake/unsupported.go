package snowflake

import (
	"context"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// Target-role methods: Snowflake plays warehouse.RoleSource only.
// Every target-role operation fails with NotSupported (spec.md §4.2).

func (b *Backend) EnsureMetadataTables(ctx context.Context) error {
	return warehouse.NewUnsupported(string(warehouse.KindSnowflake), "ensure_metadata_tables", "snowflake backend is source-only")
}

func (b *Backend) CreateTable(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, replaceExisting bool) error {
	return warehouse.NewUnsupported(string(warehouse.KindSnowflake), "create_table", "snowflake backend is source-only")
}

func (b *Backend) TruncateTable(ctx context.Context, table warehouse.TableDescriptor) error {
	return warehouse.NewUnsupported(string(warehouse.KindSnowflake), "truncate_table", "snowflake backend is source-only")
}

func (b *Backend) ProcessInsertBatches(ctx context.Context, table warehouse.TableDescriptor, seq warehouse.BatchSeq, normalize warehouse.BatchFunc) (int64, error) {
	return 0, warehouse.NewUnsupported(string(warehouse.KindSnowflake), "process_insert_batches", "snowflake backend is source-only")
}

func (b *Backend) ProcessDeleteBatches(ctx context.Context, table warehouse.TableDescriptor, seq warehouse.BatchSeq, normalize warehouse.BatchFunc) (int64, error) {
	return 0, warehouse.NewUnsupported(string(warehouse.KindSnowflake), "process_delete_batches", "snowflake backend is source-only")
}

func (b *Backend) UpdateCDCTrackers(ctx context.Context, table warehouse.TableDescriptor, etlID string) error {
	return warehouse.NewUnsupported(string(warehouse.KindSnowflake), "update_cdc_trackers", "snowflake backend is source-only")
}

func (b *Backend) GetETLIDs(ctx context.Context, table warehouse.TableDescriptor) ([]string, error) {
	return nil, warehouse.NewUnsupported(string(warehouse.KindSnowflake), "get_etl_ids", "snowflake backend is source-only")
}
