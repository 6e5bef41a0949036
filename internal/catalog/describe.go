package catalog

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes a human-readable listing of every table's constraints and
// patchable columns. Output is deterministic.
func Describe(w io.Writer) error {
	for i, t := range tables {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := describeTable(w, t); err != nil {
			return err
		}
	}
	return nil
}

func describeTable(w io.Writer, t Table) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.Name)
	fmt.Fprintf(&b, "  primary key (%s) -> %s\n", strings.Join(t.PrimaryKey, ", "), t.ExistsCode)
	for _, u := range t.Unique {
		fmt.Fprintf(&b, "  unique %s (%s)", u.Name, strings.Join(u.Columns, ", "))
		if u.Where != "" {
			fmt.Fprintf(&b, " where %s", u.Where)
		}
		fmt.Fprintf(&b, " -> %s\n", u.Code)
	}
	for _, fk := range t.ForeignKeys {
		fmt.Fprintf(&b, "  foreign key %s -> %s(%s)\n", fk.Column, fk.RefTable, fk.RefColumn)
	}
	for _, c := range t.Checks {
		fmt.Fprintf(&b, "  check %s (%s) -> %s\n", c.Name, c.Expr, c.Code())
	}
	if cols := PatchableColumns(t.Name); cols != nil {
		fmt.Fprintf(&b, "  patchable: %s\n", strings.Join(cols, ", "))
	}
	_, err := io.WriteString(w, b.String())
	return err
}
