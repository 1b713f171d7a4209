package datasource

import "time"

// StatementResult holds the outcome of executing a SQL statement against an
// external database. Columns preserve result-set order; Rows map column name
// to value. For statements that return no rows, Columns and Rows are empty and
// RowCount reflects the number of rows affected.
type StatementResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"row_count"`
	Elapsed  time.Duration    `json:"-"`
}

// TableDescriptor describes a user table discovered in an external database.
// RowEstimate comes from planner statistics and may lag the true count.
type TableDescriptor struct {
	Schema      string `json:"schema"`
	Name        string `json:"name"`
	RowEstimate int64  `json:"row_estimate"`
}

// ColumnDescriptor describes a single column of a table. Optional fields
// (Default, Extra) are empty strings when unpopulated, never null.
type ColumnDescriptor struct {
	Name         string `json:"name"`
	DataType     string `json:"data_type"`
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default"`
	IsPrimaryKey bool   `json:"is_primary_key"`
	IsUnique     bool   `json:"is_unique"`
	Extra        string `json:"extra"`
}
