package xlsxstream

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rowTemplateXML = `<row r="1"><c t="n" r="A1"><v>12</v></c><c t="s" r="B1"><v>second</v></c><c r="C1"><v>21</v></c></row>`

func newTestRenderer(t *testing.T, rowXML string, opts ...ExportOption) *Renderer {
	t.Helper()
	var row *Node
	if rowXML != "" {
		var err error
		row, err = ParseNode(strings.NewReader(rowXML))
		require.NoError(t, err)
	}
	r, err := NewRenderer(row, opts...)
	require.NoError(t, err)
	return r
}

func assertWellFormed(t *testing.T, b []byte) {
	t.Helper()
	d := xml.NewDecoder(bytes.NewReader(b))
	for {
		if _, err := d.Token(); err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("output is not well-formed: %v\n%s", err, b)
			}
			return
		}
	}
}

func TestRenderRow(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, rowTemplateXML)

	row, err := r.RenderRow(ctx, Row{42, "Noé!>", 24}, 12)
	require.NoError(t, err)
	assertWellFormed(t, row)
	assert.Equal(t,
		`<row r="12">`+
			`<c t="n" r="A12"><v>42</v></c>`+
			`<c t="inlineStr" r="B12"><is><t>Noé!&gt;</t></is></c>`+
			`<c r="C12"><v>24</v></c>`+
			`</row>`,
		string(row))
}

func TestRenderRowWrongTemplate(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, rowTemplateXML)

	row, err := r.RenderRow(ctx, Row{42, "Noé!>", 24, "NoTemplateElement"}, 1)
	require.NoError(t, err)
	assertWellFormed(t, row)
	assert.Equal(t,
		`<row r="1">`+
			`<c r="A1" t="inlineStr"><is><t>42</t></is></c>`+
			`<c r="B1" t="inlineStr"><is><t>Noé!&gt;</t></is></c>`+
			`<c r="C1" t="inlineStr"><is><t>24</t></is></c>`+
			`<c r="D1" t="inlineStr"><is><t>NoTemplateElement</t></is></c>`+
			`</row>`,
		string(row))
}

func TestRenderRowNullTemplate(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "")

	row, err := r.RenderRow(ctx, Row{42, "Noé!>", 24}, 2)
	require.NoError(t, err)
	assert.Equal(t,
		`<row r="2">`+
			`<c r="A2" t="inlineStr"><is><t>42</t></is></c>`+
			`<c r="B2" t="inlineStr"><is><t>Noé!&gt;</t></is></c>`+
			`<c r="C2" t="inlineStr"><is><t>24</t></is></c>`+
			`</row>`,
		string(row))
}

func TestRenderRowInvalidXMLChar(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, "")

	row, err := r.RenderRow(ctx, Row{"foo\x02bar", "_x0002_"}, 2)
	require.NoError(t, err)
	assertWellFormed(t, row)
	assert.Equal(t,
		`<row r="2">`+
			`<c r="A2" t="inlineStr"><is><t>foo_x0002_bar</t></is></c>`+
			`<c r="B2" t="inlineStr"><is><t>_x005F_x0002_</t></is></c>`+
			`</row>`,
		string(row))
}

func TestRenderRows(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, rowTemplateXML)

	rows, count, err := r.RenderRows(ctx, []Row{{42, "Noé!>", 24}, {18, "<éON", 21}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t,
		`<row r="1">`+
			`<c t="n" r="A1"><v>42</v></c>`+
			`<c t="inlineStr" r="B1"><is><t>Noé!&gt;</t></is></c>`+
			`<c r="C1"><v>24</v></c>`+
			"</row>\n"+
			`<row r="2">`+
			`<c t="n" r="A2"><v>18</v></c>`+
			`<c t="inlineStr" r="B2"><is><t>&lt;éON</t></is></c>`+
			`<c r="C2"><v>21</v></c>`+
			`</row>`,
		string(rows))

	empty, count, err := r.RenderRows(ctx, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, empty)
}

func TestRenderRowMismatchPolicies(t *testing.T) {
	ctx := context.Background()
	values := Row{"not a number", "text", 7}

	t.Run("degrade row", func(t *testing.T) {
		r := newTestRenderer(t, rowTemplateXML)
		row, err := r.RenderRow(ctx, values, 5)
		require.NoError(t, err)
		assert.Equal(t,
			`<row r="5">`+
				`<c r="A5" t="inlineStr"><is><t>not a number</t></is></c>`+
				`<c r="B5" t="inlineStr"><is><t>text</t></is></c>`+
				`<c r="C5" t="inlineStr"><is><t>7</t></is></c>`+
				`</row>`,
			string(row))

		// the template is used again for the next row
		row, err = r.RenderRow(ctx, Row{1, "a", 2}, 6)
		require.NoError(t, err)
		assert.Contains(t, string(row), `<c t="n" r="A6"><v>1</v></c>`)
	})

	t.Run("degrade cell", func(t *testing.T) {
		r := newTestRenderer(t, rowTemplateXML, WithMismatchPolicy(DegradeCell))
		row, err := r.RenderRow(ctx, values, 5)
		require.NoError(t, err)
		assert.Equal(t,
			`<row r="5">`+
				`<c t="inlineStr" r="A5"><is><t>not a number</t></is></c>`+
				`<c t="inlineStr" r="B5"><is><t>text</t></is></c>`+
				`<c r="C5"><v>7</v></c>`+
				`</row>`,
			string(row))

		row, err = r.RenderRow(ctx, Row{1, "a", 2}, 6)
		require.NoError(t, err)
		assert.Contains(t, string(row), `<c t="n" r="A6"><v>1</v></c>`, "degraded cell is restored from the template")
	})

	t.Run("fail fast", func(t *testing.T) {
		r := newTestRenderer(t, rowTemplateXML, WithMismatchPolicy(FailFast))
		_, err := r.RenderRow(ctx, values, 5)
		var mismatch *CellMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "A", mismatch.Column)
		assert.Equal(t, 5, mismatch.Row)
	})
}

func TestRenderRowUnsupportedValue(t *testing.T) {
	r := newTestRenderer(t, rowTemplateXML)
	_, err := r.RenderRow(context.Background(), Row{1, struct{}{}, 2}, 2)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestRendererReset(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer(t, rowTemplateXML)

	_, err := r.RenderRow(ctx, Row{1, 2}, 1)
	require.NoError(t, err)
	assert.Len(t, r.defaults, 1)

	first := r.working.row
	r.Reset()
	assert.Empty(t, r.defaults)
	assert.NotSame(t, first, r.working.row)

	// the pristine template is never mutated
	assert.Equal(t, rowTemplateXML, string(r.template.row.Bytes()))
}

func TestRenderRowEncoding(t *testing.T) {
	r := newTestRenderer(t, "", WithEncoding("latin1"))
	row, err := r.RenderRow(context.Background(), Row{"Noé €", "日本"}, 1)
	require.NoError(t, err)
	assert.Equal(t,
		"<row r=\"1\"><c r=\"A1\" t=\"inlineStr\"><is><t>No\xe9 \x80</t></is></c>"+
			"<c r=\"B1\" t=\"inlineStr\"><is><t>&#26085;&#26412;</t></is></c></row>",
		string(row))
}

func TestDefaultRowTemplate(t *testing.T) {
	row, err := DefaultRowTemplate(28)
	require.NoError(t, err)
	assert.Len(t, row.Children, 28)
	ref, _ := row.Children[27].Attr("r")
	assert.Equal(t, "AB1", ref)

	_, err = DefaultRowTemplate(20000)
	assert.Error(t, err)
}
