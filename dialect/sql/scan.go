package sql

import (
	"context"
	"fmt"

	"github.com/stratumdb/stratum/dialect"
)

// ScanMaps reads every row into a column-name keyed map. []byte values are
// converted to string so keys compare across drivers.
func ScanMaps(rows *Rows) ([]map[string]any, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: scan: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: scan: %w", err)
	}
	return out, nil
}

// QueryMaps executes a statement through the boundary and scans all result
// rows into maps.
func QueryMaps(ctx context.Context, drv dialect.ExecQuerier, query string, args []any) ([]map[string]any, error) {
	var rows Rows
	if err := drv.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	return ScanMaps(&rows)
}
