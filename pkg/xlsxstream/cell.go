package xlsxstream

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"
)

// CellKind is the declared kind of a template cell, read from its t attribute.
type CellKind int

const (
	// KindNumeric covers t="n" and cells without a t attribute.
	KindNumeric CellKind = iota
	// KindBoolean covers t="b".
	KindBoolean
	// KindOther covers every other kind; such cells are written as inline strings.
	KindOther
)

func (k CellKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// KindOf returns the declared kind of cell.
func KindOf(cell *Node) CellKind {
	t, ok := cell.Attr("t")
	if !ok {
		return KindNumeric
	}
	switch t {
	case "n":
		return KindNumeric
	case "b":
		return KindBoolean
	}
	return KindOther
}

// CellColumn returns the column letters of the cell's r attribute.
func CellColumn(cell *Node) (string, error) {
	ref, _ := cell.Attr("r")
	col, _, err := excelize.SplitCellName(ref)
	if err != nil || strings.ContainsRune(ref, '$') || strings.ToUpper(col) != col {
		return "", fmt.Errorf("%w: %q", ErrInvalidCellReference, ref)
	}
	return col, nil
}

// UpdateCell rewrites cell for a new row index and value, dispatching on its
// declared kind. The r attribute is reset to the new position even when the
// value does not fit the kind, in which case a *CellMismatch is returned and
// the cell keeps its previous content. Values without a conversion rule
// return ErrUnsupportedValue.
func UpdateCell(cell *Node, row int, value any, date1904 bool) error {
	column, err := CellColumn(cell)
	if err != nil {
		return err
	}
	value, err = normalizeValue(value)
	if err != nil {
		return fmt.Errorf("column '%s', line '%d': %w", column, row, err)
	}

	kind := KindOf(cell)
	switch kind {
	case KindNumeric:
		err = updateNumericCell(cell, value, date1904)
	case KindBoolean:
		err = updateBooleanCell(cell, value)
	default:
		err = updateTextCell(cell, value)
	}
	if m, ok := err.(*CellMismatch); ok {
		m.Column, m.Row, m.Kind = column, row, kind
	}
	cell.SetAttr("r", column+strconv.Itoa(row))
	return err
}

func updateNumericCell(cell *Node, value any, date1904 bool) error {
	text := ""
	if value != nil {
		if _, isBool := value.(bool); isBool {
			return &CellMismatch{Value: value, Reason: "expected a numeric or date like value"}
		}
		if serial, err := toSerial(value, date1904); err == nil {
			text = formatFloat(serial)
		} else {
			text = strings.TrimSpace(printedForm(value))
		}
		if !isNumericText(text) {
			return &CellMismatch{Value: value, Reason: "expected a numeric or date like value"}
		}
	}
	valueHolder(cell).Text = text
	return nil
}

// isNumericText reports whether text is a finite decimal number.
func isNumericText(text string) bool {
	if strings.ContainsAny(text, "xXpP_") {
		return false
	}
	f, err := strconv.ParseFloat(text, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func updateBooleanCell(cell *Node, value any) error {
	text := ""
	switch v := value.(type) {
	case nil:
	case bool:
		text = "0"
		if v {
			text = "1"
		}
	default:
		return &CellMismatch{Value: value, Reason: "expected a boolean"}
	}
	valueHolder(cell).Text = text
	return nil
}

// updateTextCell forces the cell into inline string mode. Attributes other
// than t are kept, so the cell style survives.
func updateTextCell(cell *Node, value any) error {
	text := ""
	if value != nil {
		text = EscapeText(printedForm(value))
	}
	t := &Node{Name: "t", Text: text}
	if text != strings.TrimSpace(text) {
		t.Attrs = []Attr{{Space: namespaceXML, Local: "space", Value: "preserve"}}
	}
	cell.SetAttr("t", "inlineStr")
	cell.Children = []*Node{{Name: "is", Children: []*Node{t}}}
	cell.Text = ""
	return nil
}

// valueHolder returns the cell's v child, creating it when missing.
func valueHolder(cell *Node) *Node {
	if v := cell.Child("v"); v != nil {
		return v
	}
	v := &Node{Name: "v"}
	cell.Children = append(cell.Children, v)
	return v
}

// normalizeValue reduces a row value to one of the supported kinds:
// nil, bool, int64, uint64, float64, string, json.Number or a temporal value.
func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, bool, int64, uint64, float64, string, json.Number,
		time.Time, time.Duration, civil.Date, civil.Time, civil.DateTime:
		return v, nil
	case []byte:
		return string(v), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
}

// printedForm renders a normalized value as plain text.
func printedForm(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return formatFloat(v)
	case string:
		return v
	case json.Number:
		return v.String()
	case time.Time:
		if loc := ExportTimezone(); loc != nil {
			v = v.In(loc)
		}
		return v.Format("2006-01-02 15:04:05.999999999-07:00")
	case civil.DateTime:
		return v.Date.String() + " " + v.Time.String()
	case civil.Date:
		return v.String()
	case civil.Time:
		return v.String()
	case time.Duration:
		return v.String()
	}
	return fmt.Sprint(value)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
