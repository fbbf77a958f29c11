package xlsxstream

import (
	"bytes"
	"context"

	"github.com/rs/zerolog"
)

// WorksheetTemplate is what a sample worksheet contributes to an export: an
// optional header row copied as is, an optional frozen-pane view and an
// optional row template used as the model for every data row.
type WorksheetTemplate struct {
	Header *Node
	View   *Node
	Row    *Node
}

// ExtractTemplate parses a worksheet and returns its template parts. It never
// fails: unparseable input yields an empty template and the renderer falls
// back to all-text rows.
func ExtractTemplate(ctx context.Context, sheetXML []byte) WorksheetTemplate {
	var tpl WorksheetTemplate

	root, err := ParseNode(bytes.NewReader(sheetXML))
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("worksheet template is not valid XML, using default template")
		return tpl
	}

	tpl.View = frozenView(root)

	sheetData := root.Child("sheetData")
	if sheetData == nil {
		zerolog.Ctx(ctx).Warn().Msg("worksheet template has no sheetData, using default template")
		return tpl
	}

	rows := sheetData.ChildrenNamed("row")
	switch {
	case len(rows) == 0:
	case len(rows) == 1:
		tpl.Row = rows[0]
	case countCells(rows[0]) != countCells(rows[1]):
		zerolog.Ctx(ctx).Warn().
			Int("header_cells", countCells(rows[0])).
			Int("row_cells", countCells(rows[1])).
			Msg("header and row template do not have the same number of cells, ignoring both")
	default:
		tpl.Header, tpl.Row = rows[0], rows[1]
	}
	return tpl
}

// frozenView returns a minimal sheetViews subtree when the first sheet view
// carries a frozen pane.
func frozenView(root *Node) *Node {
	views := root.Child("sheetViews")
	if views == nil {
		return nil
	}
	view := views.Child("sheetView")
	if view == nil {
		return nil
	}
	pane := view.Child("pane")
	if pane == nil {
		return nil
	}
	if state, _ := pane.Attr("state"); state != "frozen" {
		return nil
	}

	sheetView := &Node{Name: "sheetView", Children: []*Node{{Name: "pane", Attrs: append([]Attr(nil), pane.Attrs...)}}}
	if id, ok := view.Attr("workbookViewId"); ok {
		sheetView.SetAttr("workbookViewId", id)
	} else {
		sheetView.SetAttr("workbookViewId", "0")
	}
	return &Node{Name: "sheetViews", Children: []*Node{sheetView}}
}

func countCells(row *Node) int {
	return len(row.ChildrenNamed("c"))
}
