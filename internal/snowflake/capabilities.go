package snowflake

import (
	"context"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// SupportedCDCPolicies reports that Snowflake, played as source, can
// emit change data under all three policies (spec.md §4.2).
func (b *Backend) SupportedCDCPolicies() []warehouse.CDCPolicy {
	return []warehouse.CDCPolicy{warehouse.FullRefresh, warehouse.AppendOnlyStream, warehouse.StandardStream}
}

// AuthType names the authentication mechanism this connection uses,
// informational only (spec.md §4.2).
func (b *Backend) AuthType() string {
	return "USERNAME_AND_PASSWORD"
}

// GetChangeTrackingSchemaFQN returns the database.schema melchi's own
// stream and staging objects live under (spec.md §4.2, §3
// "Stream-Processing Staging"), read from the source config's
// change_tracking_database/change_tracking_schema options — the same
// fields sqlgen.GenerateSourceSQL's ChangeTrackingSchema expects an
// operator to configure. Falls back to the connection's own database
// with a dedicated MELCHI_CDC schema when unset, so a minimal config
// still works.
func (b *Backend) GetChangeTrackingSchemaFQN() string {
	return b.trackingDatabase() + "." + b.trackingSchema()
}

func (b *Backend) trackingDatabase() string {
	if db, ok := b.cfg.Options["change_tracking_database"].(string); ok && db != "" {
		return db
	}
	return b.cfg.Database
}

func (b *Backend) trackingSchema() string {
	if schema, ok := b.cfg.Options["change_tracking_schema"].(string); ok && schema != "" {
		return schema
	}
	return "MELCHI_CDC"
}

// ExecuteQuery runs sql directly against the currently open connection
// or transaction, optionally returning rows as a Batch (spec.md §4.2,
// reserved for tests/setup).
func (b *Backend) ExecuteQuery(ctx context.Context, sql string, returnRows bool) (*warehouse.Batch, error) {
	if !returnRows {
		if _, err := b.q().ExecContext(ctx, sql); err != nil {
			return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "execute_query", warehouse.TableDescriptor{}, err)
		}
		return nil, nil
	}

	rows, err := b.q().QueryContext(ctx, sql)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "execute_query", warehouse.TableDescriptor{}, err)
	}
	defer rows.Close()

	batch, err := drainRows(rows)
	if err != nil {
		return nil, warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "execute_query", warehouse.TableDescriptor{}, err)
	}
	return batch, nil
}
