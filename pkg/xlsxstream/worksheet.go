package xlsxstream

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog"
)

// RenderWorksheet streams a worksheet built from sheetXML and the batches.
// Each yielded chunk is self-contained: the opening tags, the frozen view,
// the header row, one chunk per batch, then the closing tags. Only one batch
// of rendered rows is held in memory at a time.
func RenderWorksheet(ctx context.Context, batches iter.Seq2[Batch, error], sheetXML []byte, opts ...ExportOption) iter.Seq2[[]byte, error] {
	cfg, err := NewExportConfig(opts...)
	if err != nil {
		return func(yield func([]byte, error) bool) {
			yield(nil, err)
		}
	}
	return renderWorksheet(ctx, batches, sheetXML, cfg)
}

func renderWorksheet(ctx context.Context, batches iter.Seq2[Batch, error], sheetXML []byte, cfg *ExportConfig) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		tpl := ExtractTemplate(ctx, sheetXML)
		renderer := newRenderer(tpl.Row, cfg)
		renderer.Reset()

		emit := func(s string) bool {
			b, err := cfg.encode([]byte(s))
			if err != nil {
				yield(nil, err)
				return false
			}
			return yield(b, nil)
		}

		open := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"%s\" standalone=\"yes\"?>\n"+
			"<worksheet xmlns=\"%s\" xmlns:r=\"%s\">\n",
			strings.ToUpper(cfg.Encoding), NamespaceMain, NamespaceRelationships)
		if !emit(open) {
			return
		}
		if tpl.View != nil && !emit(string(tpl.View.Bytes())+"\n") {
			return
		}
		if !emit(" <sheetData>\n") {
			return
		}

		line := 1
		if tpl.Header != nil {
			header := headerRow(tpl.Header)
			if !emit(string(header.Bytes()) + "\n") {
				return
			}
			line++
		}

		for batch, err := range batches {
			if err != nil {
				yield(nil, err)
				return
			}
			chunk, count, err := renderer.RenderRows(ctx, batch, line)
			if err != nil {
				yield(nil, fmt.Errorf("rendering rows from line %d: %w", line, err))
				return
			}
			line += count
			if !yield(append(chunk, '\n'), nil) {
				return
			}
		}
		zerolog.Ctx(ctx).Debug().Int("rows", line-1).Msg("worksheet rendered")

		emit(" </sheetData>\n</worksheet>\n")
	}
}

// headerRow places the header on line 1. Cells with a malformed reference
// are copied untouched.
func headerRow(header *Node) *Node {
	h := header.Clone()
	h.SetAttr("r", "1")
	for _, c := range h.ChildrenNamed("c") {
		if col, err := CellColumn(c); err == nil {
			c.SetAttr("r", col+"1")
		}
	}
	return h
}
