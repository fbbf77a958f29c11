package xlsxstream

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func peopleTemplate(t *testing.T) []byte {
	return buildTemplate(t, func(f *excelize.File) {
		for cell, v := range map[string]any{
			"A1": "id", "B1": "name", "C1": "joined",
			"A2": 12, "B2": "sample", "C2": 40000,
		} {
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
		require.NoError(t, f.SetPanes("Sheet1", &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}))
	})
}

func peopleRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{i, "person " + strings.Repeat("x", i%3), civil.Date{Year: 2012, Month: time.January, Day: 2}}
	}
	return rows
}

func exportBytes(t *testing.T, source any, template []byte, opts ...ExportOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := ExportTo(context.Background(), &buf, source, template, opts...)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExport(t *testing.T) {
	template := peopleTemplate(t)
	out := exportBytes(t, peopleRows(27), template, WithBatchSize(10))

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 28)
	assert.Equal(t, []string{"id", "name", "joined"}, rows[0])
	for i, row := range rows[1:] {
		require.Len(t, row, 3)
		assert.Equal(t, peopleRows(27)[i][1], row[1])
	}

	raw, err := f.GetCellValue("Sheet1", "C28", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "40910", raw)
	id, err := f.GetCellValue("Sheet1", "A28", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "26", id)
}

func TestExportKeepsOtherEntries(t *testing.T) {
	template := peopleTemplate(t)
	out := exportBytes(t, peopleRows(3), template)

	src, err := OpenArchive(template)
	require.NoError(t, err)
	dst, err := OpenArchive(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, entryNames(src), entryNames(dst))

	sheet, err := FirstSheetName(src)
	require.NoError(t, err)
	for _, f := range src.File {
		if f.Name == sheet {
			continue
		}
		want, err := ReadEntry(src, f.Name)
		require.NoError(t, err)
		got, err := ReadEntry(dst, f.Name)
		require.NoError(t, err)
		assert.Equal(t, want, got, f.Name)
	}

	worksheet, err := ReadEntry(dst, sheet)
	require.NoError(t, err)
	assert.Contains(t, string(worksheet), `state="frozen"`)
	assertWellFormed(t, worksheet)
}

func TestExportFallsBackToDefaultTemplate(t *testing.T) {
	noSheet := buildZip(t, map[string]string{"a.txt": "a"}, "a.txt")

	for name, template := range map[string][]byte{"missing": nil, "corrupt": []byte("not a zip"), "no worksheet": noSheet} {
		t.Run(name, func(t *testing.T) {
			out := exportBytes(t, []Row{{1, true, "a"}, {2, false, "b"}}, template)

			f, err := excelize.OpenReader(bytes.NewReader(out))
			require.NoError(t, err)
			defer f.Close()

			rows, err := f.GetRows("Sheet1")
			require.NoError(t, err)
			assert.Equal(t, [][]string{{"1", "true", "a"}, {"2", "false", "b"}}, rows)
		})
	}
}

func TestExportFilters(t *testing.T) {
	template := peopleTemplate(t)
	src, err := OpenArchive(template)
	require.NoError(t, err)
	sheet, err := FirstSheetName(src)
	require.NoError(t, err)

	var dropped string
	for _, f := range src.File {
		if f.Name != sheet {
			dropped = f.Name
			break
		}
	}

	dst, err := OpenArchive(exportBytes(t, peopleRows(1), template, WithExclude(dropped)))
	require.NoError(t, err)
	assert.NotContains(t, entryNames(dst), dropped)
	assert.Len(t, dst.File, len(src.File)-1)

	dst, err = OpenArchive(exportBytes(t, peopleRows(1), template, WithOnly(dropped)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dropped, sheet}, entryNames(dst))

	_, err = Export(context.Background(), peopleRows(1), template, WithOnly(dropped), WithExclude(sheet))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestExportIsLazy(t *testing.T) {
	src := &countingSlicer{rows: SliceSource(peopleRows(5))}
	archive, err := Export(context.Background(), src, peopleTemplate(t), WithBatchSize(2))
	require.NoError(t, err)
	assert.Empty(t, src.calls)

	var buf bytes.Buffer
	_, err = archive.WriteTo(&buf)
	require.NoError(t, err)
	assert.Len(t, src.calls, 3)
}

func TestExportErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Export(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = Export(ctx, peopleRows(1), nil, WithBatchSize(0))
	assert.ErrorIs(t, err, ErrConfiguration)

	var buf bytes.Buffer
	_, err = ExportTo(ctx, &buf, []Row{{"oops", "x", "y"}}, peopleTemplate(t), WithMismatchPolicy(FailFast))
	var mismatch *CellMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "A", mismatch.Column)
	assert.Equal(t, 2, mismatch.Row)
}

func TestExportTransform(t *testing.T) {
	upper := func(b Batch) (Batch, error) {
		for _, r := range b {
			r[1] = strings.ToUpper(r[1].(string))
		}
		return b, nil
	}
	f, err := excelize.OpenReader(bytes.NewReader(exportBytes(t, peopleRows(2), peopleTemplate(t), WithTransform(upper))))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Sheet1", "B3")
	require.NoError(t, err)
	assert.Equal(t, "PERSON X", v)
}

func TestExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, ExportToFile(context.Background(), path, peopleRows(4), peopleTemplate(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := OpenArchive(data)
	require.NoError(t, err)
	_, err = FirstSheetName(zr)
	assert.NoError(t, err)

	err = ExportToFile(context.Background(), filepath.Join(t.TempDir(), "missing", "out.xlsx"), peopleRows(1), nil)
	assert.Error(t, err)
}
