package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/Polyconseil/xlsx-streaming/internal/repository/builder"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
)

// TableQuery selects rows of one table.
type TableQuery struct {
	Table   string
	Columns []string
	Where   string
	Args    []interface{}
	OrderBy []string
}

func (q TableQuery) builder() *builder.SQLBuilder {
	b := builder.NewSQLBuilder().Select(q.Columns...).From(q.Table)
	if q.Where != "" {
		b.WhereRaw(q.Where, q.Args...)
	}
	return b.OrderBy(q.OrderBy...)
}

// SQLPager reads a table one LIMIT/OFFSET window at a time. The ordering
// must be total for windows not to overlap.
type SQLPager struct {
	db    *sql.DB
	query TableQuery
}

// NewSQLPager creates a paged row source over q.
func NewSQLPager(db *sql.DB, q TableQuery) *SQLPager {
	return &SQLPager{db: db, query: q}
}

// Slice returns the rows in [start, end).
func (p *SQLPager) Slice(ctx context.Context, start, end int) ([]xlsxstream.Row, error) {
	query, args, err := p.query.builder().Limit(end - start).Offset(start).BuildSafe()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", p.query.Table, err)
	}
	defer rows.Close()

	scanner, err := newRowScanner(rows)
	if err != nil {
		return nil, err
	}

	out := make([]xlsxstream.Row, 0, end-start)
	for rows.Next() {
		row, err := scanner.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.query.Table, err)
	}
	return out, nil
}

// SQLCursor runs one query and hands its rows out forward. The query starts
// on the first call to Next and the result set is closed once exhausted.
type SQLCursor struct {
	db      *sql.DB
	query   string
	args    []interface{}
	rows    *sql.Rows
	scanner *rowScanner
	done    bool
}

// NewSQLCursor creates a forward-only row source over query.
func NewSQLCursor(db *sql.DB, query string, args ...interface{}) *SQLCursor {
	return &SQLCursor{db: db, query: query, args: args}
}

// NewTableCursor creates a forward-only row source over q.
func NewTableCursor(db *sql.DB, q TableQuery) (*SQLCursor, error) {
	query, args, err := q.builder().BuildSafe()
	if err != nil {
		return nil, err
	}
	return NewSQLCursor(db, query, args...), nil
}

// Next returns the next row, io.EOF after the last one.
func (c *SQLCursor) Next(ctx context.Context) (xlsxstream.Row, error) {
	if c.done {
		return nil, io.EOF
	}
	if c.rows == nil {
		rows, err := c.db.QueryContext(ctx, c.query, c.args...)
		if err != nil {
			c.done = true
			return nil, fmt.Errorf("running query: %w", err)
		}
		scanner, err := newRowScanner(rows)
		if err != nil {
			c.done = true
			rows.Close()
			return nil, err
		}
		c.rows, c.scanner = rows, scanner
	}

	if !c.rows.Next() {
		err := c.rows.Err()
		c.Close()
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		return nil, io.EOF
	}
	return c.scanner.scan(c.rows)
}

// Close releases the result set. Next returns io.EOF afterwards.
func (c *SQLCursor) Close() error {
	c.done = true
	if c.rows == nil {
		return nil
	}
	return c.rows.Close()
}

// Columns returns the result column names once the query has started.
func (c *SQLCursor) Columns() []string {
	if c.scanner == nil {
		return nil
	}
	return c.scanner.names
}
