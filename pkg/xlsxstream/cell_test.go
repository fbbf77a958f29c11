package xlsxstream

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numericCell(attrs ...Attr) *Node {
	return &Node{Name: "c", Attrs: attrs, Children: []*Node{{Name: "v", Text: "123"}}}
}

func TestUpdateNumericCell(t *testing.T) {
	cell := numericCell(Attr{Local: "t", Value: "n"}, Attr{Local: "r", Value: "A1"})

	require.NoError(t, UpdateCell(cell, 30, 125, false))
	assert.Equal(t, `<c t="n" r="A30"><v>125</v></c>`, string(cell.Bytes()))

	require.NoError(t, UpdateCell(cell, 30, nil, false))
	assert.Equal(t, "", cell.Child("v").Text)

	cell = numericCell(Attr{Local: "r", Value: "A1"})
	require.NoError(t, UpdateCell(cell, 30, 12.5, false))
	assert.Equal(t, `<c r="A30"><v>12.5</v></c>`, string(cell.Bytes()))
}

func TestUpdateNumericCellValues(t *testing.T) {
	type cents int64
	n := 7

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"int", 42, "42"},
		{"uint8", uint8(200), "200"},
		{"named int", cents(99), "99"},
		{"pointer", &n, "7"},
		{"float", 0.1, "0.1"},
		{"integral float", 3.0, "3"},
		{"large float", 1e20, "1e+20"},
		{"numeric string", " 3.25 ", "3.25"},
		{"json number", json.Number("18"), "18"},
		{"time", time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC), "40910"},
		{"civil date", civil.Date{Year: 2012, Month: time.January, Day: 2}, "40910"},
		{"duration", 6 * time.Hour, "0.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell := numericCell(Attr{Local: "r", Value: "B1"})
			require.NoError(t, UpdateCell(cell, 2, tt.value, false))
			assert.Equal(t, tt.want, cell.Child("v").Text)
		})
	}
}

func TestUpdateNumericCellMismatch(t *testing.T) {
	for _, v := range []any{"not a number", true, "NaN", "inf", "-Infinity", "0x1p-2"} {
		cell := numericCell(Attr{Local: "r", Value: "C1"})
		err := UpdateCell(cell, 9, v, false)

		var mismatch *CellMismatch
		require.ErrorAs(t, err, &mismatch, "value %#v", v)
		assert.Equal(t, "C", mismatch.Column)
		assert.Equal(t, 9, mismatch.Row)
		assert.Equal(t, KindNumeric, mismatch.Kind)

		ref, _ := cell.Attr("r")
		assert.Equal(t, "C9", ref, "position is updated even on mismatch")
		assert.Equal(t, "123", cell.Child("v").Text, "content is left untouched")
	}
}

func TestUpdateBooleanCell(t *testing.T) {
	cell := &Node{Name: "c", Attrs: []Attr{{Local: "t", Value: "b"}, {Local: "r", Value: "B1"}}, Children: []*Node{{Name: "v", Text: "1"}}}

	require.NoError(t, UpdateCell(cell, 12, false, false))
	assert.Equal(t, `<c t="b" r="B12"><v>0</v></c>`, string(cell.Bytes()))

	require.NoError(t, UpdateCell(cell, 12, true, false))
	assert.Equal(t, "1", cell.Child("v").Text)

	require.NoError(t, UpdateCell(cell, 12, nil, false))
	assert.Equal(t, "", cell.Child("v").Text)

	var mismatch *CellMismatch
	require.ErrorAs(t, UpdateCell(cell, 13, 1, false), &mismatch)
	assert.Equal(t, KindBoolean, mismatch.Kind)
	assert.Contains(t, mismatch.Error(), "column 'B', line '13'")
}

func TestUpdateTextCell(t *testing.T) {
	cell := &Node{
		Name:     "c",
		Attrs:    []Attr{{Local: "t", Value: "s"}, {Local: "r", Value: "C1"}, {Local: "s", Value: "4"}},
		Children: []*Node{{Name: "v", Text: "0"}},
	}

	require.NoError(t, UpdateCell(cell, 2, "Updated", false))
	assert.Equal(t, `<c t="inlineStr" r="C2" s="4"><is><t>Updated</t></is></c>`, string(cell.Bytes()))

	require.NoError(t, UpdateCell(cell, 2, nil, false))
	assert.Equal(t, `<c t="inlineStr" r="C2" s="4"><is><t/></is></c>`, string(cell.Bytes()))

	require.NoError(t, UpdateCell(cell, 3, " padded", false))
	assert.Equal(t, `<c t="inlineStr" r="C3" s="4"><is><t xml:space="preserve"> padded</t></is></c>`, string(cell.Bytes()))

	require.NoError(t, UpdateCell(cell, 4, 42, false))
	assert.Equal(t, "42", cell.Child("is").Child("t").Text)

	require.NoError(t, UpdateCell(cell, 5, civil.Date{Year: 2012, Month: time.January, Day: 2}, false))
	assert.Equal(t, "2012-01-02", cell.Child("is").Child("t").Text)

	require.NoError(t, UpdateCell(cell, 6, []byte("foo\x02"), false))
	assert.Equal(t, "foo_x0002_", cell.Child("is").Child("t").Text)
}

func TestUpdateCellInvalidReference(t *testing.T) {
	for _, ref := range []string{"", "1A", "A", "a1", "$A$1"} {
		cell := numericCell()
		if ref != "" {
			cell.SetAttr("r", ref)
		}
		err := UpdateCell(cell, 1, 1, false)
		if !errors.Is(err, ErrInvalidCellReference) {
			t.Errorf("ref %q: expected ErrInvalidCellReference, got %v", ref, err)
		}
	}
}

func TestUpdateCellUnsupportedValue(t *testing.T) {
	cell := numericCell(Attr{Local: "r", Value: "A1"})
	err := UpdateCell(cell, 1, map[string]int{"a": 1}, false)
	require.ErrorIs(t, err, ErrUnsupportedValue)

	var mismatch *CellMismatch
	assert.False(t, errors.As(err, &mismatch))
}

func TestKindOf(t *testing.T) {
	tests := map[string]CellKind{"n": KindNumeric, "b": KindBoolean, "s": KindOther, "inlineStr": KindOther, "str": KindOther, "e": KindOther}
	for tag, want := range tests {
		assert.Equal(t, want, KindOf(&Node{Name: "c", Attrs: []Attr{{Local: "t", Value: tag}}}), tag)
	}
	assert.Equal(t, KindNumeric, KindOf(&Node{Name: "c"}))
}

func TestCellColumn(t *testing.T) {
	col, err := CellColumn(&Node{Name: "c", Attrs: []Attr{{Local: "r", Value: "ABC123"}}})
	require.NoError(t, err)
	assert.Equal(t, "ABC", col)
}
