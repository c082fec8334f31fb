// Package docstore defines a schema-on-write document store client: documents
// are addressed by slash-separated paths ("posts/{id}",
// "posts/{id}/comments/{commentID}"), grouped in collections, queried with
// equality filters and a single ordering, and observed through live listeners.
package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is a field value replaced with the store's write time.
var ServerTimestamp any = serverTimestamp{}

// Fields is the data of a document. Values are strings, bools, float64,
// int64, time.Time, nil or ServerTimestamp (writes only).
type Fields map[string]any

// Document is a read snapshot of a stored document.
type Document struct {
	ID   string
	Path string
	Data Fields
}

// Store is implemented by every document-store backend.
type Store interface {
	// Get returns the document at path or an error matching domain.ErrNotFound.
	Get(ctx context.Context, path string) (*Document, error)
	// Add creates a document with a generated id in collection.
	Add(ctx context.Context, collection string, data Fields) (string, error)
	// Set creates or fully replaces the document at path.
	Set(ctx context.Context, path string, data Fields) error
	// Update merges data into an existing document.
	Update(ctx context.Context, path string, data Fields) error
	// Delete removes the document at path. Deleting a missing document is not
	// an error.
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Listen delivers the result of q now and after every change to its
	// collection until the listener is closed or ctx is done.
	Listen(ctx context.Context, q Query) (*Listener, error)
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the collection and id of a document path.
func Split(path string) (collection, id string, err error) {
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("docstore: invalid document path %q", path)
	}
	segments := strings.Count(path, "/") + 1
	if segments%2 != 0 {
		return "", "", fmt.Errorf("docstore: %q is not a document path", path)
	}
	return path[:i], path[i+1:], nil
}

// ParentID returns the id of the document that owns the document's
// collection, or "" for top-level collections.
func (d *Document) ParentID() string {
	parts := strings.Split(d.Path, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-3]
}

// String returns the field as a string, or "" when missing or not a string.
func (d *Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

// StringPtr returns nil for missing, null or non-string fields.
func (d *Document) StringPtr(field string) *string {
	s, ok := d.Data[field].(string)
	if !ok {
		return nil
	}
	return &s
}

// Time returns nil unless the field holds a timestamp.
func (d *Document) Time(field string) *time.Time {
	t, ok := d.Data[field].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// ResolveTimestamps returns a copy of data with every ServerTimestamp
// replaced by now and *string values dereferenced.
func ResolveTimestamps(data Fields, now time.Time) Fields {
	out := make(Fields, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case serverTimestamp:
			out[k] = now
		case *string:
			if t == nil {
				out[k] = nil
			} else {
				out[k] = *t
			}
		default:
			out[k] = v
		}
	}
	return out
}

// Now is the write time used for ServerTimestamp, truncated to the precision
// the postgres backend keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
