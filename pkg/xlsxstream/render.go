package xlsxstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// workingRow is a row node together with its cells in template order.
type workingRow struct {
	row       *Node
	cells     []*Node
	positions []int
}

func newWorkingRow(row *Node) *workingRow {
	w := &workingRow{row: row}
	for i, c := range row.Children {
		if c.Name == "c" {
			w.cells = append(w.cells, c)
			w.positions = append(w.positions, i)
		}
	}
	return w
}

// Renderer renders rows of values against a row template. It owns a working
// copy of the template that is mutated for every row, and a cache of all-text
// default templates keyed by width. A Renderer serves one stream at a time
// and is not safe for concurrent use.
type Renderer struct {
	template *workingRow
	working  *workingRow
	defaults map[int]*workingRow
	cfg      *ExportConfig
}

// NewRenderer returns a renderer for row, which may be nil.
func NewRenderer(row *Node, opts ...ExportOption) (*Renderer, error) {
	cfg, err := NewExportConfig(opts...)
	if err != nil {
		return nil, err
	}
	return newRenderer(row, cfg), nil
}

func newRenderer(row *Node, cfg *ExportConfig) *Renderer {
	r := &Renderer{cfg: cfg}
	if row != nil {
		r.template = newWorkingRow(row.Clone())
	}
	r.Reset()
	return r
}

// Reset starts a fresh stream: the working row is cloned from the template
// again and cached default templates are dropped.
func (r *Renderer) Reset() {
	r.working = nil
	if r.template != nil {
		r.working = newWorkingRow(r.template.row.Clone())
	}
	r.defaults = make(map[int]*workingRow)
}

// RenderRow renders values as row number index. When the template is missing
// or its cell count differs from len(values), an all-text row is rendered.
func (r *Renderer) RenderRow(ctx context.Context, values Row, index int) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.renderRow(ctx, &buf, values, index); err != nil {
		return nil, err
	}
	return r.cfg.encode(buf.Bytes())
}

// RenderRows renders rows starting at row number start, separated by a
// newline. It returns the rendered bytes and the number of rows rendered.
func (r *Renderer) RenderRows(ctx context.Context, rows []Row, start int) ([]byte, int, error) {
	var buf bytes.Buffer
	count := 0
	for i, values := range rows {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if err := r.renderRow(ctx, &buf, values, start+count); err != nil {
			return nil, count, err
		}
		count++
	}
	out, err := r.cfg.encode(buf.Bytes())
	if err != nil {
		return nil, count, err
	}
	return out, count, nil
}

func (r *Renderer) renderRow(ctx context.Context, buf *bytes.Buffer, values Row, index int) error {
	if r.working == nil || len(r.working.cells) != len(values) {
		w, err := r.defaultRow(len(values))
		if err != nil {
			return err
		}
		return r.fill(w, values, index, buf)
	}

	err := r.fill(r.working, values, index, buf)
	var mismatch *CellMismatch
	if !errors.As(err, &mismatch) {
		return err
	}

	switch r.cfg.Mismatch {
	case DegradeCell:
		zerolog.Ctx(ctx).Warn().Err(mismatch).Msg("writing mismatched cells as text")
		return r.fillDegradingCells(ctx, values, index, buf)
	case DegradeRow:
		zerolog.Ctx(ctx).Warn().Err(mismatch).Msg("writing row with the default template")
		w, err := r.defaultRow(len(values))
		if err != nil {
			return err
		}
		return r.fill(w, values, index, buf)
	}
	return mismatch
}

// fill updates every cell of w and serializes the row into buf. Nothing is
// written to buf when a cell fails.
func (r *Renderer) fill(w *workingRow, values Row, index int, buf *bytes.Buffer) error {
	for i, cell := range w.cells {
		if err := UpdateCell(cell, index, values[i], r.cfg.Date1904); err != nil {
			return err
		}
	}
	w.row.SetAttr("r", strconv.Itoa(index))
	w.row.writeXML(buf)
	return nil
}

// fillDegradingCells renders the working row, writing mismatched cells as
// text. Those cells are restored from the template afterwards.
func (r *Renderer) fillDegradingCells(ctx context.Context, values Row, index int, buf *bytes.Buffer) error {
	w := r.working
	var degraded []int
	for i, cell := range w.cells {
		err := UpdateCell(cell, index, values[i], r.cfg.Date1904)
		var mismatch *CellMismatch
		if errors.As(err, &mismatch) {
			zerolog.Ctx(ctx).Debug().Str("column", mismatch.Column).Msg("cell degraded to text")
			v, _ := normalizeValue(values[i])
			_ = updateTextCell(cell, v)
			degraded = append(degraded, i)
			continue
		}
		if err != nil {
			return err
		}
	}
	w.row.SetAttr("r", strconv.Itoa(index))
	w.row.writeXML(buf)

	for _, i := range degraded {
		cell := r.template.cells[i].Clone()
		w.cells[i] = cell
		w.row.Children[w.positions[i]] = cell
	}
	return nil
}

// defaultRow returns the cached all-text template for width cells.
func (r *Renderer) defaultRow(width int) (*workingRow, error) {
	if w, ok := r.defaults[width]; ok {
		return w, nil
	}
	row, err := DefaultRowTemplate(width)
	if err != nil {
		return nil, err
	}
	w := newWorkingRow(row)
	r.defaults[width] = w
	return w, nil
}

// DefaultRowTemplate synthesizes a row of width inline string cells in
// columns A onwards.
func DefaultRowTemplate(width int) (*Node, error) {
	row := &Node{Name: "row", Attrs: []Attr{{Local: "r", Value: "1"}}}
	for i := 1; i <= width; i++ {
		col, err := excelize.ColumnNumberToName(i)
		if err != nil {
			return nil, fmt.Errorf("%d values do not fit in a worksheet row of %d columns", width, excelize.MaxColumns)
		}
		row.Children = append(row.Children, &Node{
			Name:     "c",
			Attrs:    []Attr{{Local: "r", Value: col + "1"}, {Local: "t", Value: "inlineStr"}},
			Children: []*Node{{Name: "is", Children: []*Node{{Name: "t"}}}},
		})
	}
	return row, nil
}
