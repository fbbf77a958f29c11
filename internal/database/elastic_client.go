package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"github.com/olivere/elastic/v7"
)

// ElasticSearchClient wraps olivere/elastic client.
type ElasticSearchClient struct {
	client *elastic.Client
}

// NewElasticSearchClient creates a new client for Elasticsearch 7.x.
func NewElasticSearchClient(url string, opts ...elastic.ClientOptionFunc) (*ElasticSearchClient, error) {
	options := append([]elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false), // Essential when using Docker or cloud
		elastic.SetHealthcheck(false),
	}, opts...)

	client, err := elastic.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &ElasticSearchClient{client: client}, nil
}

// Cursor scrolls through index, pageSize documents per request, and returns
// the listed columns of every document. Dotted columns reach nested fields.
func (es *ElasticSearchClient) Cursor(index string, columns []string, pageSize int, keepAlive string) *ElasticCursor {
	scroll := es.client.Scroll(index).
		Size(pageSize).
		KeepAlive(keepAlive).
		Sort("_doc", true) // Most efficient sort for scrolling
	return &ElasticCursor{scroll: scroll, columns: columns}
}

// ElasticCursor is a forward-only row source over a scroll. It fetches one
// page when the previous one is consumed.
type ElasticCursor struct {
	scroll  *elastic.ScrollService
	columns []string
	page    []*elastic.SearchHit
	pos     int
	done    bool
}

// Next returns the next document as a row, io.EOF after the last one.
func (c *ElasticCursor) Next(ctx context.Context) (xlsxstream.Row, error) {
	for c.pos >= len(c.page) {
		if c.done {
			return nil, io.EOF
		}
		res, err := c.scroll.Do(ctx)
		if errors.Is(err, io.EOF) {
			c.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("scroll error: %w", err)
		}
		c.page, c.pos = res.Hits.Hits, 0
	}

	hit := c.page[c.pos]
	c.pos++
	return documentRow(hit.Source, c.columns)
}

// Close releases the scroll context on the server.
func (c *ElasticCursor) Close(ctx context.Context) error {
	return c.scroll.Clear(ctx)
}

func documentRow(source json.RawMessage, columns []string) (xlsxstream.Row, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	row := make(xlsxstream.Row, len(columns))
	for i, col := range columns {
		row[i] = documentValue(lookupField(doc, col))
	}
	return row, nil
}

func lookupField(doc map[string]any, path string) any {
	if v, ok := doc[path]; ok {
		return v
	}
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// documentValue converts a decoded JSON value to a cell value. Objects and
// arrays are written back as JSON text.
func documentValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return v
}
