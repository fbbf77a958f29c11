package xlsxstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// worksheetPattern is the path convention of worksheet entries.
const worksheetPattern = "xl/worksheets/*.xml"

// Archive is a repackaged spreadsheet ready to be streamed. Every selected
// entry of the source is copied byte for byte, except the replacement entry
// which is written from a lazy chunk sequence.
type Archive struct {
	src     *zip.Reader
	name    string
	content iter.Seq2[[]byte, error]
	files   []*zip.File
	method  uint16
}

// OpenArchive opens an in-memory zip archive.
func OpenArchive(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return zr, nil
}

// FirstSheetName returns the first worksheet entry in archive order.
func FirstSheetName(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if ok, _ := path.Match(worksheetPattern, f.Name); ok {
			return f.Name, nil
		}
	}
	return "", ErrNoWorksheet
}

// ReadEntry returns the content of the named entry.
func ReadEntry(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", name, err)
	}
	return data, nil
}

// Repackage prepares a copy of src where the entry name is replaced by
// content. Only and Exclude options select the copied entries; the
// replacement entry is always written, in its original position or last when
// src does not have it.
func Repackage(src *zip.Reader, name string, content iter.Seq2[[]byte, error], opts ...ExportOption) (*Archive, error) {
	cfg, err := NewExportConfig(opts...)
	if err != nil {
		return nil, err
	}
	return newArchive(src, name, content, cfg), nil
}

func newArchive(src *zip.Reader, name string, content iter.Seq2[[]byte, error], cfg *ExportConfig) *Archive {
	a := &Archive{src: src, name: name, content: content, method: cfg.Method}
	for _, f := range src.File {
		switch {
		case f.Name == name:
		case len(cfg.Only) > 0 && !slices.Contains(cfg.Only, f.Name):
			continue
		case slices.Contains(cfg.Exclude, f.Name):
			continue
		}
		a.files = append(a.files, f)
	}
	return a
}

// Names lists the entries of the output archive in write order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.files)+1)
	found := false
	for _, f := range a.files {
		names = append(names, f.Name)
		found = found || f.Name == a.name
	}
	if !found {
		names = append(names, a.name)
	}
	return names
}

// WriteTo streams the archive into w. Worksheet chunks are pulled only as
// fast as w accepts them. The archive can be written once.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	zw := zip.NewWriter(cw)

	written := false
	for _, f := range a.files {
		if f.Name == a.name {
			if err := a.writeContent(zw, f.Modified); err != nil {
				return cw.n, err
			}
			written = true
			continue
		}
		if err := zw.Copy(f); err != nil {
			return cw.n, fmt.Errorf("copying entry %s: %w", f.Name, err)
		}
	}
	if !written {
		if err := a.writeContent(zw, time.Now()); err != nil {
			return cw.n, err
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("closing archive: %w", err)
	}
	return cw.n, nil
}

func (a *Archive) writeContent(zw *zip.Writer, modified time.Time) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: a.name, Method: a.method, Modified: modified})
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", a.name, err)
	}
	for chunk, err := range a.content {
		if err != nil {
			return err
		}
		if _, err := fw.Write(chunk); err != nil {
			return fmt.Errorf("writing entry %s: %w", a.name, err)
		}
	}
	return nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// defaultArchive is an empty single-sheet workbook used when a template
// cannot be read.
var defaultArchive = sync.OnceValues(func() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("building default workbook: %w", err)
	}
	return buf.Bytes(), nil
})

// loadTemplate opens template and returns the archive, its first worksheet
// name and that worksheet's XML. A missing or unusable template falls back
// to the default workbook.
func loadTemplate(ctx context.Context, template []byte) (*zip.Reader, string, []byte, error) {
	zr, name, sheet, err := readTemplate(template)
	if err == nil {
		return zr, name, sheet, nil
	}
	zerolog.Ctx(ctx).Warn().Err(err).Msg("template workbook unusable, using default workbook")

	data, derr := defaultArchive()
	if derr != nil {
		return nil, "", nil, derr
	}
	return readTemplate(data)
}

func readTemplate(template []byte) (*zip.Reader, string, []byte, error) {
	if len(template) == 0 {
		return nil, "", nil, fmt.Errorf("opening archive: empty template")
	}
	zr, err := OpenArchive(template)
	if err != nil {
		return nil, "", nil, err
	}
	name, err := FirstSheetName(zr)
	if err != nil {
		return nil, "", nil, err
	}
	sheet, err := ReadEntry(zr, name)
	if err != nil {
		return nil, "", nil, err
	}
	return zr, name, sheet, nil
}
