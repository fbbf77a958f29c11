package xlsxstream

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Export streams the rows of source into a copy of the template workbook.
//
// source is a Slicer, a Cursor or a []Row. template holds an xlsx file whose
// first worksheet provides the optional header row (first row) and the row
// template (second row, or first when alone). A template that cannot be
// opened or has no worksheet is replaced by an empty workbook, so every
// value is written as text.
//
// Nothing is fetched or rendered until the returned archive is written.
func Export(ctx context.Context, source any, template []byte, opts ...ExportOption) (*Archive, error) {
	cfg, err := NewExportConfig(opts...)
	if err != nil {
		return nil, err
	}
	if _, err := newFetcher(source); err != nil {
		return nil, err
	}

	zr, sheetName, sheetXML, err := loadTemplate(ctx, template)
	if err != nil {
		return nil, err
	}

	batches := SerializeByBatch(ctx, source, cfg.Transform, cfg.BatchSize)
	content := renderWorksheet(ctx, batches, sheetXML, cfg)
	return newArchive(zr, sheetName, content, cfg), nil
}

// ExportToFile runs Export and writes the archive to path.
func ExportToFile(ctx context.Context, path string, source any, template []byte, opts ...ExportOption) (err error) {
	archive, err := Export(ctx, source, template, opts...)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	_, err = archive.WriteTo(f)
	return err
}

// ExportTo runs Export and writes the archive to w.
func ExportTo(ctx context.Context, w io.Writer, source any, template []byte, opts ...ExportOption) (int64, error) {
	archive, err := Export(ctx, source, template, opts...)
	if err != nil {
		return 0, err
	}
	return archive.WriteTo(w)
}
