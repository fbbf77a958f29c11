package builder

import (
	"fmt"
	"strings"
)

// SQLBuilder helps construct SELECT queries for row sources. Conditions use
// "?" placeholders which Build numbers as $1, $2, ... in order.
type SQLBuilder struct {
	table      string
	columns    []string
	conditions []condition
	orderBy    []string
	limit      int
	offset     int
}

type condition struct {
	sql  string
	args []interface{}
	raw  bool
}

// NewSQLBuilder creates a new instance of SQLBuilder.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{}
}

// Select specifies the columns to retrieve.
func (b *SQLBuilder) Select(cols ...string) *SQLBuilder {
	b.columns = cols
	return b
}

// From specifies the table to select from.
func (b *SQLBuilder) From(table string) *SQLBuilder {
	b.table = table
	return b
}

// Where adds a condition, combined with the others using AND.
func (b *SQLBuilder) Where(cond string, args ...interface{}) *SQLBuilder {
	b.conditions = append(b.conditions, condition{sql: cond, args: args})
	return b
}

// WhereRaw adds a condition kept in parentheses, for expressions with OR.
func (b *SQLBuilder) WhereRaw(sql string, args ...interface{}) *SQLBuilder {
	b.conditions = append(b.conditions, condition{sql: sql, args: args, raw: true})
	return b
}

// OrderBy adds an ORDER BY clause.
func (b *SQLBuilder) OrderBy(order ...string) *SQLBuilder {
	b.orderBy = append(b.orderBy, order...)
	return b
}

// Limit adds a LIMIT clause.
func (b *SQLBuilder) Limit(limit int) *SQLBuilder {
	b.limit = limit
	return b
}

// Offset adds an OFFSET clause.
func (b *SQLBuilder) Offset(offset int) *SQLBuilder {
	b.offset = offset
	return b
}

// Build constructs the final SQL string and arguments. It does not change
// the builder, so it can be called again after Limit or Offset.
func (b *SQLBuilder) Build() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	if len(b.conditions) > 0 {
		argIndex := 1
		clauses := make([]string, 0, len(b.conditions))
		for _, c := range b.conditions {
			clause := numberPlaceholders(c.sql, &argIndex)
			if c.raw && len(b.conditions) > 1 {
				clause = "(" + clause + ")"
			}
			clauses = append(clauses, clause)
			args = append(args, c.args...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	if b.offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
	}

	return sb.String(), args
}

// BuildSafe constructs the final SQL string and arguments with safety validation.
// Returns an error if the number of placeholders doesn't match the number of arguments.
func (b *SQLBuilder) BuildSafe() (string, []interface{}, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("no table to select from")
	}

	placeholders := 0
	for _, c := range b.conditions {
		placeholders += strings.Count(c.sql, "?")
	}

	sql, args := b.Build()
	if placeholders != len(args) {
		return "", nil, fmt.Errorf("placeholder count (%d) does not match argument count (%d)", placeholders, len(args))
	}

	return sql, args, nil
}

// numberPlaceholders replaces each "?" with the next $n.
func numberPlaceholders(sql string, argIndex *int) string {
	var sb strings.Builder
	parts := strings.Split(sql, "?")
	for i, part := range parts {
		sb.WriteString(part)
		if i < len(parts)-1 {
			sb.WriteString(fmt.Sprintf("$%d", *argIndex))
			*argIndex++
		}
	}
	return sb.String()
}
