package xlsxstream

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{i, "row"}
	}
	return rows
}

func collectBatches(t *testing.T, seq func(func(Batch, error) bool)) []Batch {
	t.Helper()
	var batches []Batch
	for batch, err := range seq {
		require.NoError(t, err)
		batches = append(batches, batch)
	}
	return batches
}

// countingSlicer records every window it is asked for.
type countingSlicer struct {
	rows  SliceSource
	calls [][2]int
}

func (s *countingSlicer) Slice(ctx context.Context, start, end int) ([]Row, error) {
	s.calls = append(s.calls, [2]int{start, end})
	return s.rows.Slice(ctx, start, end)
}

func sliceCursor(rows []Row) Cursor {
	i := 0
	return CursorFunc(func(context.Context) (Row, error) {
		if i >= len(rows) {
			return nil, io.EOF
		}
		i++
		return rows[i-1], nil
	})
}

func TestSerializeByBatch(t *testing.T) {
	ctx := context.Background()

	batches := collectBatches(t, SerializeByBatch(ctx, numberedRows(270), nil, 10))
	require.Len(t, batches, 27)
	for i, b := range batches {
		require.Len(t, b, 10)
		assert.Equal(t, i*10, b[0][0])
	}

	batches = collectBatches(t, SerializeByBatch(ctx, numberedRows(27), nil, 10))
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 7)

	assert.Empty(t, collectBatches(t, SerializeByBatch(ctx, []Row{}, nil, 10)))
}

func TestSerializeByBatchIsLazy(t *testing.T) {
	src := &countingSlicer{rows: SliceSource(numberedRows(25))}
	seq := SerializeByBatch(context.Background(), src, nil, 10)
	assert.Empty(t, src.calls, "nothing is fetched before iteration")

	for range seq {
		break
	}
	assert.Equal(t, [][2]int{{0, 10}}, src.calls)

	src = &countingSlicer{rows: SliceSource(numberedRows(25))}
	collectBatches(t, SerializeByBatch(context.Background(), src, nil, 10))
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 30}}, src.calls, "a short window ends the sequence")
}

func TestSerializeByBatchCursor(t *testing.T) {
	batches := collectBatches(t, SerializeByBatch(context.Background(), sliceCursor(numberedRows(27)), nil, 10))
	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 7)
	assert.Equal(t, 26, batches[2][6][0])

	batches = collectBatches(t, SerializeByBatch(context.Background(), sliceCursor(numberedRows(20)), nil, 10))
	assert.Len(t, batches, 2)
}

func TestSerializeByBatchTransform(t *testing.T) {
	double := func(b Batch) (Batch, error) {
		out := make(Batch, len(b))
		for i, r := range b {
			out[i] = Row{r[0].(int) * 2}
		}
		return out, nil
	}

	batches := collectBatches(t, SerializeByBatch(context.Background(), numberedRows(3), double, 2))
	require.Len(t, batches, 2)
	assert.Equal(t, Batch{{0}, {2}}, batches[0])
	assert.Equal(t, Batch{{4}}, batches[1])
}

func TestSerializeByBatchErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("fetch error", func(t *testing.T) {
		calls := 0
		cursor := CursorFunc(func(context.Context) (Row, error) {
			calls++
			if calls > 3 {
				return nil, boom
			}
			return Row{calls}, nil
		})
		var errs []error
		batches := 0
		for batch, err := range SerializeByBatch(ctx, cursor, nil, 2) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			batches++
			assert.Len(t, batch, 2)
		}
		assert.Equal(t, 1, batches)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], boom)
	})

	t.Run("transform error", func(t *testing.T) {
		fail := func(Batch) (Batch, error) { return nil, boom }
		for _, err := range SerializeByBatch(ctx, numberedRows(5), fail, 2) {
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), "transforming batch")
		}
	})

	t.Run("invalid source", func(t *testing.T) {
		for _, src := range []any{nil, "rows", 42} {
			for _, err := range SerializeByBatch(ctx, src, nil, 10) {
				assert.ErrorIs(t, err, ErrConfiguration)
			}
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		for _, err := range SerializeByBatch(ctx, numberedRows(5), nil, 0) {
			assert.ErrorIs(t, err, ErrConfiguration)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		for batch, err := range SerializeByBatch(ctx, numberedRows(5), nil, 2) {
			assert.Nil(t, batch)
			assert.ErrorIs(t, err, context.Canceled)
		}
	})
}
