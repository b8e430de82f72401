package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory. It backs tests and
// single-node development runs.
type MemoryStore struct {
	m           sync.RWMutex
	collections map[string]map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*Document),
	}
}

func copyDocument(d *Document) *Document {
	fields := make(map[string]interface{}, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return &Document{Id: d.Id, CreatedAt: d.CreatedAt, Fields: fields}
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.RLock()
	defer s.m.RUnlock()

	var res []*Document
	for _, d := range s.collections[q.Collection] {
		if !matches(d, q.Filters) {
			continue
		}
		if q.StartAfter != nil {
			pos := PositionOf(d)
			if q.Ascending && !before(pos, *q.StartAfter) {
				continue
			}
			if !q.Ascending && !before(*q.StartAfter, pos) {
				continue
			}
		}
		res = append(res, d)
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
	for i := range res {
		res[i] = copyDocument(res[i])
	}
	return res, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.m.RLock()
	defer s.m.RUnlock()

	var n int64
	for _, d := range s.collections[collection] {
		if matches(d, filters) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection string, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.RLock()
	defer s.m.RUnlock()

	d, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(d), nil
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, doc *Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.m.Lock()
	defer s.m.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]*Document)
		s.collections[collection] = c
	}
	d := copyDocument(doc)
	if d.Id == "" {
		d.Id = uuid.New().String()
	}
	if _, ok := c[d.Id]; ok {
		return "", ErrAlreadyExists
	}
	c[d.Id] = d
	return d.Id, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.m.Lock()
	defer s.m.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
