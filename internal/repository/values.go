package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
)

// rowScanner scans result rows into cell values using the column types.
type rowScanner struct {
	names []string
	types []string
}

func newRowScanner(rows *sql.Rows) (*rowScanner, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("reading column types: %w", err)
	}
	s := &rowScanner{names: make([]string, len(cols)), types: make([]string, len(cols))}
	for i, c := range cols {
		s.names[i] = c.Name()
		s.types[i] = strings.ToUpper(c.DatabaseTypeName())
	}
	return s, nil
}

func (s *rowScanner) scan(rows *sql.Rows) (xlsxstream.Row, error) {
	values := make([]interface{}, len(s.names))
	ptrs := make([]interface{}, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	row := make(xlsxstream.Row, len(values))
	for i, v := range values {
		row[i] = CellValue(v, s.types[i])
	}
	return row, nil
}

// CellValue converts a driver value of a column of dbType to a cell value.
// Dates and times without zone become civil values so that they are written
// as stored; zoned timestamps stay instants.
func CellValue(v interface{}, dbType string) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case []byte:
		s := string(v)
		if dbType == "TIME" {
			if t, err := civil.ParseTime(s); err == nil {
				return t
			}
		}
		return s
	case time.Time:
		switch dbType {
		case "DATE":
			return civil.DateOf(v)
		case "TIME":
			return civil.TimeOf(v)
		case "TIMESTAMP", "DATETIME":
			return civil.DateTimeOf(v)
		}
		return v
	case string:
		if dbType == "TIME" {
			if t, err := civil.ParseTime(v); err == nil {
				return t
			}
		}
		return v
	}
	return v
}
