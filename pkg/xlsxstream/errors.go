package xlsxstream

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid export configuration, such as
	// supplying both an include and an exclude entry filter.
	ErrConfiguration = errors.New("xlsxstream: invalid configuration")

	// ErrUnsupportedValue is returned when a row value has no conversion rule.
	ErrUnsupportedValue = errors.New("xlsxstream: unsupported value kind")

	// ErrInvalidCellReference is returned when a template cell has a missing or
	// malformed position attribute. It indicates a corrupt template.
	ErrInvalidCellReference = errors.New("xlsxstream: invalid cell reference")

	// ErrNoWorksheet is returned when an archive holds no xl/worksheets/*.xml entry.
	ErrNoWorksheet = errors.New("xlsxstream: no worksheet entry in archive")

	errNotTemporal = errors.New("not a temporal value")
)

// CellMismatch describes a value that cannot be written into a cell of the
// declared kind. It is recovered according to the export's MismatchPolicy.
type CellMismatch struct {
	Column string
	Row    int
	Kind   CellKind
	Value  any
	Reason string
}

func (e *CellMismatch) Error() string {
	return fmt.Sprintf("column '%s', line '%d': %s cell %s (got %v)", e.Column, e.Row, e.Kind, e.Reason, e.Value)
}
