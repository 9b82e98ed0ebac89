package schema

import (
	"context"
	"fmt"

	"github.com/koustreak/askdb/internal/database"
)

// Inspect lists every table and then each table's columns. Nothing is
// cached: every call costs one round-trip per table plus one for the list.
func Inspect(ctx context.Context, db database.DB) (*Snapshot, error) {
	tables, err := db.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	snap := NewSnapshot()
	for _, table := range tables {
		cols, err := db.ListColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("inspecting table %q: %w", table, err)
		}
		snap.Add(table, cols)
	}
	return snap, nil
}
