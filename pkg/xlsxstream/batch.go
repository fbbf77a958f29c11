package xlsxstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Row is one ordered sequence of cell values.
type Row = []any

// Batch is a group of at most batch size rows.
type Batch = []Row

// Slicer is a source with random access by window, typically a paged query.
// Slice returns the rows in [start, end); fewer rows means the source is exhausted.
type Slicer interface {
	Slice(ctx context.Context, start, end int) ([]Row, error)
}

// Cursor is a forward-only source. Next returns io.EOF once no rows are left.
type Cursor interface {
	Next(ctx context.Context) (Row, error)
}

// SliceSource adapts an in-memory slice of rows to Slicer.
type SliceSource []Row

func (s SliceSource) Slice(_ context.Context, start, end int) ([]Row, error) {
	if start >= len(s) {
		return nil, nil
	}
	return s[start:min(end, len(s))], nil
}

// CursorFunc adapts a function to Cursor.
type CursorFunc func(ctx context.Context) (Row, error)

func (f CursorFunc) Next(ctx context.Context) (Row, error) {
	return f(ctx)
}

// fetchFunc returns the next batch; done reports that no batch follows it.
type fetchFunc func(ctx context.Context, size int) (rows []Row, done bool, err error)

func newFetcher(source any) (fetchFunc, error) {
	switch src := source.(type) {
	case Slicer:
		start := 0
		return func(ctx context.Context, size int) ([]Row, bool, error) {
			rows, err := src.Slice(ctx, start, start+size)
			if err != nil {
				return nil, true, fmt.Errorf("fetching rows %d to %d: %w", start, start+size, err)
			}
			start += size
			return rows, len(rows) < size, nil
		}, nil
	case Cursor:
		return func(ctx context.Context, size int) ([]Row, bool, error) {
			rows := make([]Row, 0, size)
			for len(rows) < size {
				row, err := src.Next(ctx)
				if errors.Is(err, io.EOF) {
					return rows, true, nil
				}
				if err != nil {
					return nil, true, fmt.Errorf("fetching row: %w", err)
				}
				rows = append(rows, row)
			}
			return rows, false, nil
		}, nil
	case []Row:
		return newFetcher(SliceSource(src))
	case nil:
		return nil, fmt.Errorf("%w: nil row source", ErrConfiguration)
	}
	return nil, fmt.Errorf("%w: %T is neither a Slicer nor a Cursor", ErrConfiguration, source)
}

// SerializeByBatch pulls source one window of size rows at a time and yields
// each window after transform. source is a Slicer, a Cursor or a []Row.
//
// The sequence is lazy and single-pass: one fetch per yielded batch, nothing
// is read ahead. A short window ends the sequence; empty windows are not
// yielded. Fetch and transform errors are yielded once and end the sequence.
func SerializeByBatch(ctx context.Context, source any, transform TransformFunc, size int) iter.Seq2[Batch, error] {
	fetch, err := newFetcher(source)
	if err == nil && size <= 0 {
		err = fmt.Errorf("%w: batch size must be positive, got %d", ErrConfiguration, size)
	}
	return func(yield func(Batch, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			rows, done, err := fetch(ctx, size)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) > 0 {
				batch := Batch(rows)
				if transform != nil {
					if batch, err = transform(batch); err != nil {
						yield(nil, fmt.Errorf("transforming batch: %w", err))
						return
					}
				}
				if !yield(batch, nil) {
					return
				}
			}
			if done {
				return
			}
		}
	}
}
