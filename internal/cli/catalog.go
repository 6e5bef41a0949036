package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dbgateway/internal/catalog"
)

// catalogTable is one table of the catalog command's JSON output.
type catalogTable struct {
	catalog.Table
	Patchable []string `json:"patchable,omitempty"`
}

type catalogListing []catalogTable

func (catalogListing) renderText(w io.Writer) error {
	return catalog.Describe(w)
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List tables, constraints and their error codes",
		Long: `Print the constraint catalog: every table's keys, unique indexes,
foreign keys and checks, the error code each one translates to, and the
columns a patch may update.

Example:
  dbgateway catalog
  dbgateway catalog --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			return formatter.Success(listCatalog())
		},
	}
}

func listCatalog() catalogListing {
	tables := catalog.Tables()
	out := make(catalogListing, 0, len(tables))
	for _, t := range tables {
		out = append(out, catalogTable{Table: t, Patchable: catalog.PatchableColumns(t.Name)})
	}
	return out
}
