// Package docstore is the generic document-store capability the feed service
// is layered on. A Store holds named collections of schemaless documents that
// can be fetched by id, filtered by field, and paged in creation order.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get and Delete when no document has the id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Insert when the id is taken. Callers use
	// it as a compare-and-swap signal for relation records.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is one record in a collection. CreatedAt is first class because
// every query orders by it; all other attributes live in Fields.
type Document struct {
	Id        string
	CreatedAt time.Time
	Fields    map[string]interface{}
}

// Position is a point in the (CreatedAt, Id) total order of a collection.
type Position struct {
	CreatedAt time.Time
	Id        string
}

// PositionOf returns the position of a document.
func PositionOf(d *Document) Position {
	return Position{CreatedAt: d.CreatedAt, Id: d.Id}
}

type Operator int

const (
	// OpEq matches documents whose field equals the value, compared as text.
	OpEq Operator = iota
	// OpContains matches documents whose string field contains the value,
	// ignoring case.
	OpContains
)

type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func Contains(field string, substr string) Filter {
	return Filter{Field: field, Op: OpContains, Value: substr}
}

// Query selects documents of one collection. Results are ordered by
// CreatedAt then Id, newest first unless Ascending is set. StartAfter skips
// everything up to and including that position. Limit <= 0 means no limit.
type Query struct {
	Collection string
	Filters    []Filter
	Ascending  bool
	StartAfter *Position
	Limit      int
}

// Store is implemented by every backend. Implementations must be safe for
// concurrent use.
type Store interface {
	Query(ctx context.Context, q Query) ([]*Document, error)
	Count(ctx context.Context, collection string, filters ...Filter) (int64, error)
	Get(ctx context.Context, collection string, id string) (*Document, error)
	// Insert stores the document and returns its id, generating one when
	// doc.Id is empty.
	Insert(ctx context.Context, collection string, doc *Document) (string, error)
	Delete(ctx context.Context, collection string, id string) error
	Close(ctx context.Context) error
}

// before reports whether a sorts strictly before b in descending order.
func before(a, b Position) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Id > b.Id
}

func matches(d *Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := d.Fields[f.Field]
		if !ok || v == nil {
			return false
		}
		switch f.Op {
		case OpEq:
			if fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
		case OpContains:
			s, ok := v.(string)
			if !ok || !strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(f.Value))) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// QueryAny runs q once for each filter set and merges the results as if the
// sets were OR-ed together: ordered like q, without duplicates, at most
// q.Limit documents. q.Filters is ignored.
func QueryAny(ctx context.Context, s Store, q Query, alternatives ...[]Filter) ([]*Document, error) {
	seen := map[string]bool{}
	var res []*Document
	for _, filters := range alternatives {
		sub := q
		sub.Filters = filters
		docs, err := s.Query(ctx, sub)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if seen[d.Id] {
				continue
			}
			seen[d.Id] = true
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if q.Ascending {
			return before(PositionOf(res[j]), PositionOf(res[i]))
		}
		return before(PositionOf(res[i]), PositionOf(res[j]))
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}
