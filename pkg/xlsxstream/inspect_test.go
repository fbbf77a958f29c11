package xlsxstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	info, err := Inspect(context.Background(), peopleTemplate(t))
	require.NoError(t, err)

	assert.False(t, info.Fallback)
	assert.Equal(t, "xl/worksheets/sheet1.xml", info.SheetName)
	assert.Contains(t, info.Entries, "xl/workbook.xml")
	assert.Equal(t, 3, info.HeaderCells)
	assert.Equal(t, []CellKind{KindNumeric, KindOther, KindNumeric}, info.RowKinds)
	assert.Equal(t, "frozen", info.FrozenPane["state"])
	assert.Equal(t, "A2", info.FrozenPane["topLeftCell"])
}

func TestInspectFallback(t *testing.T) {
	info, err := Inspect(context.Background(), []byte("garbage"))
	require.NoError(t, err)

	assert.True(t, info.Fallback)
	assert.Equal(t, "xl/worksheets/sheet1.xml", info.SheetName)
	assert.Zero(t, info.HeaderCells)
	assert.Empty(t, info.RowKinds)
	assert.Nil(t, info.FrozenPane)
}
