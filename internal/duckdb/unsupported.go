package duckdb

import (
	"context"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// Source-role methods: DuckDB plays warehouse.RoleTarget only. Every
// source-role operation fails with NotSupported (spec.md §4.2).

func (b *Backend) SetupEnvironment(ctx context.Context, table warehouse.TableDescriptor, schema warehouse.Schema, replaceExisting bool) error {
	return warehouse.NewUnsupported(string(warehouse.KindDuckDB), "setup_environment", "duckdb backend is target-only")
}

func (b *Backend) ExtractFullRefresh(ctx context.Context, table warehouse.TableDescriptor) (warehouse.BatchSeq, error) {
	return nil, warehouse.NewUnsupported(string(warehouse.KindDuckDB), "get_batches_for_full_refresh", "duckdb backend is target-only")
}

func (b *Backend) PrepareStreamIngestion(ctx context.Context, table warehouse.TableDescriptor, newETLID string, completedETLIDs []string) (bool, error) {
	return false, warehouse.NewUnsupported(string(warehouse.KindDuckDB), "prepare_stream_ingestion", "duckdb backend is target-only")
}

func (b *Backend) GetDeleteBatchesForStream(ctx context.Context, table warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	return nil, warehouse.NewUnsupported(string(warehouse.KindDuckDB), "get_delete_batches_for_stream", "duckdb backend is target-only")
}

func (b *Backend) GetInsertBatchesForStream(ctx context.Context, table warehouse.TableDescriptor, etlID string) (warehouse.BatchSeq, error) {
	return nil, warehouse.NewUnsupported(string(warehouse.KindDuckDB), "get_insert_batches_for_stream", "duckdb backend is target-only")
}

func (b *Backend) CleanupSource(ctx context.Context, table warehouse.TableDescriptor, etlID string) error {
	return warehouse.NewUnsupported(string(warehouse.KindDuckDB), "cleanup_source", "duckdb backend is target-only")
}
