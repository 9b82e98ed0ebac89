package database

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/koustreak/askdb/internal/errs"
)

// ScanRows reads all rows from the result set and returns them as a slice
// of maps keyed by column name, plus those keys in result-set order.
//
// A repeated column name ("SELECT a.id, b.id ...") gets a numbered key
// (id, id_2) so no value is lost and the keys match the returned names.
// The returned slice is always non-nil (empty slice on zero rows).
// []byte values are converted to string and pgx UUIDs to their canonical
// text so results encode as readable JSON.
// ScanRows always closes the Rows. Callers do not need to call Close().
func ScanRows(rows Rows) ([]map[string]any, []string, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}
	keys := uniqueKeys(columns)

	result := make([]map[string]any, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := make(map[string]any, len(keys))
		for i, key := range keys {
			switch v := dest[i].(type) {
			case []byte:
				row[key] = string(v)
			case [16]byte:
				row[key] = uuid.UUID(v).String()
			default:
				row[key] = v
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, keys, nil
}

// uniqueKeys keeps the first occurrence of each column name and suffixes
// later ones with the lowest free _N.
func uniqueKeys(columns []string) []string {
	taken := make(map[string]bool, len(columns))
	for _, c := range columns {
		taken[c] = true
	}

	seen := make(map[string]bool, len(columns))
	keys := make([]string, len(columns))
	for i, c := range columns {
		if !seen[c] {
			seen[c] = true
			keys[i] = c
			continue
		}
		key := c
		for n := 2; taken[key]; n++ {
			key = c + "_" + strconv.Itoa(n)
		}
		taken[key] = true
		keys[i] = key
	}
	return keys
}
