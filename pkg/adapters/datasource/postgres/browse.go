package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ColumnFilter matches rows whose column contains the given value,
// case-insensitively.
type ColumnFilter struct {
	Column string
	Value  string
}

// BrowseOptions describes a structured row browse over a single table.
// All identifiers (Table, Schema, filter and search columns, OrderBy) must
// already be validated against the table's actual columns by the caller;
// this builder only quotes them.
type BrowseOptions struct {
	Schema        string
	Table         string
	Filters       []ColumnFilter
	Search        string
	SearchColumns []string
	OrderBy       string
	OrderDesc     bool
	Limit         int
	Offset        int
}

// BuildBrowseStatement renders a browse request into a SQL statement with
// positional parameters. Filter and search values are always bound, never
// interpolated. Returns the statement and its argument list.
func BuildBrowseStatement(opts BrowseOptions) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(qualifiedTableName(opts.Schema, opts.Table))

	var conditions []string

	for _, f := range opts.Filters {
		args = append(args, "%"+f.Value+"%")
		conditions = append(conditions, fmt.Sprintf("%s::text ILIKE $%d",
			pgx.Identifier{f.Column}.Sanitize(), len(args)))
	}

	if opts.Search != "" && len(opts.SearchColumns) > 0 {
		args = append(args, "%"+opts.Search+"%")
		param := len(args)
		clauses := make([]string, len(opts.SearchColumns))
		for i, col := range opts.SearchColumns {
			clauses[i] = fmt.Sprintf("%s::text ILIKE $%d",
				pgx.Identifier{col}.Sanitize(), param)
		}
		if len(clauses) == 1 {
			conditions = append(conditions, clauses[0])
		} else {
			conditions = append(conditions, "("+strings.Join(clauses, " OR ")+")")
		}
	}

	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if opts.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(pgx.Identifier{opts.OrderBy}.Sanitize())
		if opts.OrderDesc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	return sb.String(), args
}
