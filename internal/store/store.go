// Package store defines the document store used by the repositories: one
// collection per resource, schemaless documents keyed by an opaque
// store-assigned identifier.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
)

var (
	// ErrUnavailable wraps every connection or operation failure of a
	// backend.
	ErrUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned for identifiers absent from a collection.
	ErrNotFound = errors.New("document not found")
)

// IDField is the document key carrying the store identifier on reads.
const IDField = "_id"

// Document is a stored resource body.
type Document map[string]any

// Filter selects documents whose top-level fields equal the given values.
// An empty filter matches everything.
type Filter map[string]any

// Page is one slice of a collection listing.
type Page struct {
	Total int64
	Items []Document
}

// Store is a document store. Implementations are safe for concurrent use.
//
// Documents handed to Insert and Replace never carry IDField; documents
// returned by Get, Find and List always do.
type Store interface {
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	// Replace overwrites the document with the given id. It returns
	// ErrNotFound when no such document exists.
	Replace(ctx context.Context, collection, id string, doc Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	// Delete removes a document. Deleting an absent id is not an error.
	Delete(ctx context.Context, collection, id string) error
	Find(ctx context.Context, collection string, filter Filter) iter.Seq2[Document, error]
	// List returns documents in insertion order along with the collection
	// size.
	List(ctx context.Context, collection string, skip, limit int) (Page, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Matches reports whether doc satisfies f. Values are compared by their JSON
// encoding so that numbers decoded from different sources compare equal.
func (f Filter) Matches(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if !sameJSON(got, want) {
			return false
		}
	}
	return true
}

func sameJSON(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var av, bv any
	if json.Unmarshal(ab, &av) != nil || json.Unmarshal(bb, &bv) != nil {
		return false
	}
	na, _ := json.Marshal(av)
	nb, _ := json.Marshal(bv)
	return string(na) == string(nb)
}

// Strip returns a copy of doc without IDField, and the identifier it carried.
func Strip(doc Document) (Document, string) {
	out := make(Document, len(doc))
	var id string
	for k, v := range doc {
		if k == IDField {
			id, _ = v.(string)
			continue
		}
		out[k] = v
	}
	return out, id
}

// Clone deep-copies doc through its JSON encoding.
func Clone(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := Document{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Window clamps skip and limit to n items and returns the slice bounds.
func Window(n, skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if skip > n {
		skip = n
	}
	end := n
	if limit >= 0 && skip+limit < n {
		end = skip + limit
	}
	return skip, end
}
