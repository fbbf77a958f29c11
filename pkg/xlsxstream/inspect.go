package xlsxstream

import "context"

// TemplateInfo describes how a template workbook will be used by Export.
type TemplateInfo struct {
	SheetName   string
	Entries     []string
	Fallback    bool
	HeaderCells int
	RowKinds    []CellKind
	FrozenPane  map[string]string
}

// Inspect reports the worksheet, header, row template and frozen pane Export
// would take from template.
func Inspect(ctx context.Context, template []byte) (*TemplateInfo, error) {
	info := &TemplateInfo{}

	zr, name, sheetXML, err := readTemplate(template)
	if err != nil {
		info.Fallback = true
		if zr, name, sheetXML, err = loadTemplate(ctx, nil); err != nil {
			return nil, err
		}
	}
	info.SheetName = name
	for _, f := range zr.File {
		info.Entries = append(info.Entries, f.Name)
	}

	tpl := ExtractTemplate(ctx, sheetXML)
	if tpl.Header != nil {
		info.HeaderCells = countCells(tpl.Header)
	}
	if tpl.Row != nil {
		for _, c := range tpl.Row.ChildrenNamed("c") {
			info.RowKinds = append(info.RowKinds, KindOf(c))
		}
	}
	if tpl.View != nil {
		pane := tpl.View.Child("sheetView").Child("pane")
		info.FrozenPane = make(map[string]string, len(pane.Attrs))
		for _, a := range pane.Attrs {
			info.FrozenPane[a.Local] = a.Value
		}
	}
	return info, nil
}
