package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/datastore"
	"github.com/Polyconseil/xlsx-streaming/pkg/xlsxstream"
	"google.golang.org/api/iterator"
)

// KeyColumn selects the entity key name (or numeric ID) as a row value.
const KeyColumn = "__key__"

// DatastoreClient wraps the cloud datastore client
type DatastoreClient struct {
	client *datastore.Client
}

// NewDatastoreClient connects to projectID with the default credentials.
func NewDatastoreClient(ctx context.Context, projectID string) (*DatastoreClient, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore client: %w", err)
	}
	return &DatastoreClient{client: client}, nil
}

// WrapDatastoreClient wraps existing datastore client
func WrapDatastoreClient(client *datastore.Client) *DatastoreClient {
	if client == nil {
		return nil
	}
	return &DatastoreClient{client: client}
}

// Close closes the underlying client.
func (dc *DatastoreClient) Close() error {
	if dc == nil || dc.client == nil {
		return nil
	}
	return dc.client.Close()
}

// Cursor iterates every entity of kind, returning the listed properties.
func (dc *DatastoreClient) Cursor(kind, namespace string, columns []string) (*DatastoreCursor, error) {
	if dc == nil || dc.client == nil {
		return nil, fmt.Errorf("datastore client is nil")
	}

	q := datastore.NewQuery(kind)
	if namespace != "" {
		q = q.Namespace(namespace)
	}
	return &DatastoreCursor{client: dc.client, query: q, columns: columns}, nil
}

// DatastoreCursor is a forward-only row source over a query. The query runs
// on the first call to Next.
type DatastoreCursor struct {
	client  *datastore.Client
	query   *datastore.Query
	columns []string
	it      *datastore.Iterator
}

// Next returns the next entity as a row, io.EOF after the last one.
func (c *DatastoreCursor) Next(ctx context.Context) (xlsxstream.Row, error) {
	if c.it == nil {
		c.it = c.client.Run(ctx, c.query)
	}

	var props datastore.PropertyList
	key, err := c.it.Next(&props)
	if errors.Is(err, iterator.Done) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("datastore query error: %w", err)
	}
	return entityRow(key, props, c.columns), nil
}

func entityRow(key *datastore.Key, props datastore.PropertyList, columns []string) xlsxstream.Row {
	byName := make(map[string]any, len(props))
	for _, p := range props {
		byName[p.Name] = p.Value
	}

	row := make(xlsxstream.Row, len(columns))
	for i, col := range columns {
		if col == KeyColumn {
			row[i] = keyValue(key)
			continue
		}
		row[i] = propertyValue(byName[col])
	}
	return row
}

func keyValue(key *datastore.Key) any {
	switch {
	case key == nil:
		return nil
	case key.Name != "":
		return key.Name
	case key.ID != 0:
		return key.ID
	}
	return key.String()
}

// propertyValue converts a property to a cell value. Values without a cell
// form are written as text.
func propertyValue(v any) any {
	switch v := v.(type) {
	case *datastore.Key:
		return keyValue(v)
	case datastore.GeoPoint:
		return fmt.Sprintf("%g,%g", v.Lat, v.Lng)
	case *datastore.Entity:
		return fmt.Sprintf("%v", v.Properties)
	case []any:
		return fmt.Sprint(v...)
	}
	return v
}
