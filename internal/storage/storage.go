// Package storage provides the in-memory collection store behind the data and auth services.
package storage

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a single seeded record.
type Entry struct {
	ID     string
	Record Record
}

// Collection is an ordered set of seeded records.
type Collection struct {
	Name    string
	Entries []Entry
}

// collection keeps insertion order next to the id index.
type collection struct {
	ids     []string
	records map[string]Record
}

func newCollection() *collection {
	return &collection{records: make(map[string]Record)}
}

func (c *collection) put(id string, r Record) {
	if _, exists := c.records[id]; !exists {
		c.ids = append(c.ids, id)
	}
	c.records[id] = r
}

func (c *collection) remove(id string) {
	delete(c.records, id)
	if i := slices.Index(c.ids, id); i >= 0 {
		c.ids = slices.Delete(c.ids, i, i+1)
	}
}

// annotated returns a deep copy of the stored record with _id set.
func annotated(id string, r Record) Record {
	out := r.Clone()
	out[FieldID] = id
	return out
}

// Store holds named collections of records in memory.
// All methods are safe for concurrent use and return deep copies.
type Store struct {
	mu          sync.RWMutex
	names       []string
	collections map[string]*collection

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for _createdOn, _updatedOn and _deletedOn.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the function used to generate record ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// New creates a store populated with the given seed collections.
func New(seed []Collection, opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]*collection),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range seed {
		col := s.ensure(c.Name)
		for _, e := range c.Entries {
			r := e.Record.Clone()
			if r == nil {
				r = Record{}
			}
			delete(r, FieldID)
			col.put(e.ID, r)
		}
	}

	return s
}

// ensure returns the named collection, creating it if needed. Caller holds the write lock.
func (s *Store) ensure(name string) *collection {
	col, ok := s.collections[name]
	if !ok {
		col = newCollection()
		s.collections[name] = col
		s.names = append(s.names, name)
	}
	return col
}

// lookup returns the named collection and the stored record. Caller holds a lock.
func (s *Store) lookup(name, id string) (*collection, Record, error) {
	col, ok := s.collections[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	r, ok := col.records[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return col, r, nil
}

func (s *Store) millis() int64 {
	return s.now().UnixMilli()
}

// Collections returns the names of all collections in creation order.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// List returns every record in the collection, in insertion order.
func (s *Store) List(name string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	out := make([]Record, 0, len(col.ids))
	for _, id := range col.ids {
		out = append(out, annotated(id, col.records[id]))
	}
	return out, nil
}

// Get returns a single record by id.
func (s *Store) Get(name, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, r, err := s.lookup(name, id)
	if err != nil {
		return nil, err
	}
	return annotated(id, r), nil
}

// Add stores a new record under a fresh id. System fields in data are
// ignored. A non-empty owner is recorded as _ownerId. The collection is
// created if it does not exist.
func (s *Store) Add(name, owner string, data Record) (Record, error) {
	if data == nil {
		return nil, ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := cleanCopy(Record{}, data)
	if owner != "" {
		r[FieldOwnerID] = owner
	}

	col := s.ensure(name)
	id := s.newID()
	for {
		if _, taken := col.records[id]; !taken {
			break
		}
		id = s.newID()
	}

	r[FieldCreatedOn] = s.millis()
	col.put(id, r)
	return annotated(id, r), nil
}

// Set replaces a record. _createdOn, _ownerId and _updatedOn are carried
// forward from the existing record and _updatedOn is then refreshed.
func (s *Store) Set(name, id string, data Record) (Record, error) {
	if data == nil {
		return nil, ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, existing, err := s.lookup(name, id)
	if err != nil {
		return nil, err
	}

	r := cleanCopy(Record{}, data)
	for _, f := range systemFields {
		if v, ok := existing[f]; ok {
			r[f] = DeepCopy(v)
		}
	}
	delete(r, FieldID)
	r[FieldUpdatedOn] = s.millis()

	col.put(id, r)
	return annotated(id, r), nil
}

// Merge shallow-merges data over an existing record. System fields in data are ignored.
func (s *Store) Merge(name, id string, data Record) (Record, error) {
	if data == nil {
		return nil, ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, existing, err := s.lookup(name, id)
	if err != nil {
		return nil, err
	}

	r := cleanCopy(existing.Clone(), data)
	r[FieldUpdatedOn] = s.millis()

	col.put(id, r)
	return annotated(id, r), nil
}

// Delete removes a record and returns a {_deletedOn} marker.
func (s *Store) Delete(name, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, _, err := s.lookup(name, id)
	if err != nil {
		return nil, err
	}
	col.remove(id)

	return Record{FieldDeletedOn: s.millis()}, nil
}

// Query returns the records whose fields match every key in match.
// Strings compare case-insensitively; other values compare loosely.
func (s *Store) Query(name string, match Record) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	var out []Record
	for _, id := range col.ids {
		r := col.records[id]
		if matches(r, match) {
			out = append(out, annotated(id, r))
		}
	}
	return out, nil
}

func matches(r, match Record) bool {
	for k, want := range match {
		got, ok := r[k]
		if !ok || !matchValue(want, got) {
			return false
		}
	}
	return true
}

// Stats returns the number of records per collection.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.collections))
	for name, col := range s.collections {
		out[name] = len(col.ids)
	}
	return out
}
