// Package catalog describes the constraints of the shared schema as data.
//
// The catalog is the single source the error translator consults to turn a
// SQLite constraint failure into a public error code. It must stay in step
// with internal/store/schema.sql; store tests compare the two.
package catalog

import (
	"sort"
	"strings"

	"github.com/roach88/dbgateway/internal/apperr"
)

// Table describes one table's keys and constraints.
type Table struct {
	Name string `json:"name"`

	// PrimaryKey lists the key columns.
	PrimaryKey []string `json:"primary_key"`

	// ExistsCode is reported when the primary key is violated.
	ExistsCode apperr.Code `json:"exists_code"`

	Unique      []UniqueIndex `json:"unique,omitempty"`
	ForeignKeys []ForeignKey  `json:"foreign_keys,omitempty"`
	Checks      []Check       `json:"checks,omitempty"`
}

// UniqueIndex is an idempotency-relevant unique index.
type UniqueIndex struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`

	// Where is the partial-index predicate, empty for full indexes.
	Where string `json:"where,omitempty"`

	// Code is reported when the index is violated.
	Code apperr.Code `json:"code"`
}

// ForeignKey is a single-column reference.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Check is a named CHECK constraint.
type Check struct {
	Name   string `json:"name"`
	Column string `json:"column"`
	Expr   string `json:"expr"`

	// Amount marks checks on monetary or size columns.
	Amount bool `json:"amount,omitempty"`
}

// Code returns the public code for a violation of c.
func (c Check) Code() apperr.Code {
	if c.Amount {
		return apperr.CodeInvalidAmount
	}
	return apperr.CodeInvalidValue
}

var tables = []Table{
	{
		Name:       "agents",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeAgentExists,
		Unique: []UniqueIndex{
			{Name: "idx_agents_public_key", Columns: []string{"public_key"}, Code: apperr.CodePublicKeyExists},
		},
	},
	{
		Name:       "accounts",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeAccountExists,
		ForeignKeys: []ForeignKey{
			{Column: "id", RefTable: "agents", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_accounts_balance", Column: "balance", Expr: "balance >= 0", Amount: true},
		},
	},
	{
		Name:       "ledger_entries",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeLedgerEntryExists,
		Unique: []UniqueIndex{
			{
				Name:    "idx_ledger_credit_reference",
				Columns: []string{"account_id", "reference"},
				Where:   "kind = 'credit'",
				Code:    apperr.CodeReferenceConflict,
			},
		},
		ForeignKeys: []ForeignKey{
			{Column: "account_id", RefTable: "accounts", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_ledger_amount", Column: "amount", Expr: "amount > 0", Amount: true},
			{Name: "ck_ledger_kind", Column: "kind", Expr: "kind IN ('credit', 'escrow_lock', 'escrow_release', 'escrow_split')"},
		},
	},
	{
		Name:       "escrows",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeEscrowAlreadyLocked,
		Unique: []UniqueIndex{
			{
				Name:    "idx_escrows_locked_payer_task",
				Columns: []string{"payer_id", "task_id"},
				Where:   "status = 'locked'",
				Code:    apperr.CodeEscrowAlreadyLocked,
			},
		},
		ForeignKeys: []ForeignKey{
			{Column: "payer_id", RefTable: "accounts", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_escrows_amount", Column: "amount", Expr: "amount > 0", Amount: true},
			{Name: "ck_escrows_status", Column: "status", Expr: "status IN ('locked', 'released', 'split')"},
		},
	},
	{
		Name:       "tasks",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeTaskExists,
		ForeignKeys: []ForeignKey{
			{Column: "poster_id", RefTable: "agents", RefColumn: "id"},
			{Column: "escrow_id", RefTable: "escrows", RefColumn: "id"},
			{Column: "worker_id", RefTable: "agents", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_tasks_reward", Column: "reward", Expr: "reward > 0", Amount: true},
		},
	},
	{
		Name:       "bids",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeBidExists,
		Unique: []UniqueIndex{
			{Name: "idx_bids_task_bidder", Columns: []string{"task_id", "bidder_id"}, Code: apperr.CodeBidExists},
		},
		ForeignKeys: []ForeignKey{
			{Column: "task_id", RefTable: "tasks", RefColumn: "id"},
			{Column: "bidder_id", RefTable: "agents", RefColumn: "id"},
		},
	},
	{
		Name:       "assets",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeAssetExists,
		ForeignKeys: []ForeignKey{
			{Column: "task_id", RefTable: "tasks", RefColumn: "id"},
			{Column: "uploader_id", RefTable: "agents", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_assets_content_size", Column: "content_size", Expr: "content_size >= 0", Amount: true},
		},
	},
	{
		Name:       "feedback",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeFeedbackExists,
		Unique: []UniqueIndex{
			{
				Name:    "idx_feedback_triple",
				Columns: []string{"task_id", "from_agent_id", "to_agent_id"},
				Code:    apperr.CodeFeedbackExists,
			},
		},
		ForeignKeys: []ForeignKey{
			{Column: "task_id", RefTable: "tasks", RefColumn: "id"},
			{Column: "from_agent_id", RefTable: "agents", RefColumn: "id"},
			{Column: "to_agent_id", RefTable: "agents", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_feedback_rating", Column: "rating", Expr: "rating BETWEEN 1 AND 5"},
			{Name: "ck_feedback_visible", Column: "visible", Expr: "visible IN (0, 1)"},
		},
	},
	{
		Name:       "claims",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeClaimExists,
		ForeignKeys: []ForeignKey{
			{Column: "task_id", RefTable: "tasks", RefColumn: "id"},
			{Column: "claimant_id", RefTable: "agents", RefColumn: "id"},
			{Column: "respondent_id", RefTable: "agents", RefColumn: "id"},
		},
	},
	{
		Name:       "rebuttals",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeRebuttalExists,
		ForeignKeys: []ForeignKey{
			{Column: "claim_id", RefTable: "claims", RefColumn: "id"},
			{Column: "agent_id", RefTable: "agents", RefColumn: "id"},
		},
	},
	{
		Name:       "rulings",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeRulingExists,
		ForeignKeys: []ForeignKey{
			{Column: "claim_id", RefTable: "claims", RefColumn: "id"},
			{Column: "task_id", RefTable: "tasks", RefColumn: "id"},
		},
		Checks: []Check{
			{Name: "ck_rulings_worker_pct", Column: "worker_pct", Expr: "worker_pct BETWEEN 0 AND 100"},
		},
	},
	{
		Name:       "events",
		PrimaryKey: []string{"id"},
		ExistsCode: apperr.CodeEventExists,
	},
}

var byName = func() map[string]*Table {
	m := make(map[string]*Table, len(tables))
	for i := range tables {
		m[tables[i].Name] = &tables[i]
	}
	return m
}()

// Tables returns every catalogued table in schema order.
// The returned slice is a copy; the catalog itself is immutable.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, bool) {
	t, ok := byName[name]
	if !ok {
		return Table{}, false
	}
	return *t, true
}

// UniqueCode returns the code for a uniqueness failure over columns.
// Column order does not matter. The primary key is matched first.
func (t Table) UniqueCode(columns []string) (apperr.Code, bool) {
	key := columnKey(columns)
	if key == columnKey(t.PrimaryKey) {
		return t.ExistsCode, true
	}
	for _, idx := range t.Unique {
		if key == columnKey(idx.Columns) {
			return idx.Code, true
		}
	}
	return "", false
}

// CheckNamed returns the check constraint with the given name.
func (t Table) CheckNamed(name string) (Check, bool) {
	for _, c := range t.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// FindCheck searches every table for a named check constraint.
// SQLite reports check failures by constraint name only.
func FindCheck(name string) (Table, Check, bool) {
	for _, t := range tables {
		if c, ok := t.CheckNamed(name); ok {
			return t, c, true
		}
	}
	return Table{}, Check{}, false
}

func columnKey(columns []string) string {
	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
