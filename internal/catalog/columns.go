package catalog

import "sort"

// allowList is the fixed set of columns the generic patch may write, per
// table. Identity, ownership and money columns are never listed.
var allowList = map[string][]string{
	"tasks": {
		"status",
		"worker_id",
		"escrow_id",
		"accepted_at",
		"submitted_at",
		"approved_at",
		"cancelled_at",
		"disputed_at",
		"dispute_reason",
		"ruled_at",
		"ruling_id",
		"worker_pct",
		"ruling_summary",
		"expired_at",
	},
}

var allowSet = func() map[string]map[string]bool {
	m := make(map[string]map[string]bool, len(allowList))
	for table, cols := range allowList {
		set := make(map[string]bool, len(cols))
		for _, c := range cols {
			set[c] = true
		}
		m[table] = set
	}
	return m
}()

// Patchable reports whether column may be written by a partial update of table.
func Patchable(table, column string) bool {
	return allowSet[table][column]
}

// PatchableColumns returns the sorted allow-list for table, or nil when the
// table has none.
func PatchableColumns(table string) []string {
	cols, ok := allowList[table]
	if !ok {
		return nil
	}
	out := make([]string, len(cols))
	copy(out, cols)
	sort.Strings(out)
	return out
}

// Disallowed returns the sorted subset of columns that are not on table's
// allow-list.
func Disallowed(table string, columns []string) []string {
	var bad []string
	for _, c := range columns {
		if !Patchable(table, c) {
			bad = append(bad, c)
		}
	}
	sort.Strings(bad)
	return bad
}
