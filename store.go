package queryset

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type (
	// ID is the primary key of a record.
	ID = int64
	// Record is a single entity instance. Values are normalized on insert,
	// see Kind for the Go type stored per field kind.
	Record map[string]any
)

// Store is an arena of collections keyed by primary key. Relationship
// fields hold identifiers that are resolved on demand.
type Store struct {
	mu          sync.RWMutex
	schemas     map[string]*Schema
	collections map[string]*collection
	joins       map[string]*joinTable
}

type collection struct {
	schema  *Schema
	records []Record
	index   map[ID]int
	next    ID

	// refs indexes records by the value of each ref field.
	refs map[string]map[ID][]int
}

func NewStore(schemas ...*Schema) *Store {
	store := &Store{
		schemas:     map[string]*Schema{},
		collections: map[string]*collection{},
		joins:       map[string]*joinTable{},
	}
	store.Register(schemas...)

	return store
}

// Register adds schemas to the store. Join tables of many-to-many relations
// are created on first sight.
func (store *Store) Register(schemas ...*Schema) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, schema := range schemas {
		store.schemas[schema.Name] = schema
		store.collections[schema.Name] = &collection{
			schema: schema,
			index:  map[ID]int{},
			refs:   map[string]map[ID][]int{},
			next:   1,
		}

		for _, rel := range schema.Relations {
			if rel.Kind != RelManyToMany {
				continue
			}
			if _, ok := store.joins[rel.Through]; !ok {
				store.joins[rel.Through] = newJoinTable(rel.Through, rel.SourceCol, rel.TargetCol)
			}
		}
	}
}

func (store *Store) Schema(name string) (*Schema, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	schema, ok := store.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchCollection, name)
	}
	return schema, nil
}

// Schemas returns the registered schemas ordered by name.
func (store *Store) Schemas() []*Schema {
	store.mu.RLock()
	defer store.mu.RUnlock()

	names := lo.Keys(store.schemas)
	slices.Sort(names)
	return lo.Map(names, func(name string, _ int) *Schema { return store.schemas[name] })
}

// Insert validates and stores a record. A missing primary key is assigned
// the next free identifier. A copy of the stored record is returned.
func (store *Store) Insert(name string, rec Record) (Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	coll, ok := store.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchCollection, name)
	}

	normalized, err := normalizeRecord(coll.schema, rec)
	if err != nil {
		return nil, err
	}

	id, ok := normalized[coll.schema.PK].(ID)
	if !ok {
		id = coll.next
		normalized[coll.schema.PK] = id
	}
	if _, exists := coll.index[id]; exists {
		return nil, fmt.Errorf("%w: %s %d", ErrDuplicateID, name, id)
	}

	coll.add(normalized)

	return maps.Clone(normalized), nil
}

// Get returns a copy of the record with the given primary key.
func (store *Store) Get(name string, id ID) (Record, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rec, err := store.lookup(name, id)
	if err != nil {
		return nil, err
	}
	return maps.Clone(rec), nil
}

// lookup returns the stored record itself. The caller holds store.mu.
func (store *Store) lookup(name string, id ID) (Record, error) {
	coll, ok := store.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchCollection, name)
	}
	rec, ok := coll.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrNoSuchRecord, name, id)
	}
	return rec, nil
}

// All returns every record of a collection in insertion order.
func (store *Store) All(name string) (Set, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	coll, ok := store.collections[name]
	if !ok {
		return Set{}, fmt.Errorf("%w: %s", ErrNoSuchCollection, name)
	}

	return Set{
		store:   store,
		schema:  coll.schema,
		records: slices.Clip(coll.records),
	}, nil
}

func (coll *collection) add(rec Record) {
	id := rec[coll.schema.PK].(ID)

	coll.index[id] = len(coll.records)
	coll.records = append(coll.records, rec)
	if id >= coll.next {
		coll.next = id + 1
	}

	for name, field := range coll.schema.Fields {
		if field.Kind != KindRef {
			continue
		}
		ref, ok := rec[name].(ID)
		if !ok {
			continue
		}
		if coll.refs[name] == nil {
			coll.refs[name] = map[ID][]int{}
		}
		coll.refs[name][ref] = append(coll.refs[name][ref], coll.index[id])
	}
}

func (coll *collection) get(id ID) (Record, bool) {
	ix, ok := coll.index[id]
	if !ok {
		return nil, false
	}
	return coll.records[ix], true
}

func normalizeRecord(schema *Schema, rec Record) (Record, error) {
	normalized := make(Record, len(schema.Fields))

	for name, value := range rec {
		field, ok := schema.field(name)
		if !ok {
			return nil, invalidField(schema.Name, name)
		}
		v, ok := normalize(field.Kind, value)
		if !ok {
			return nil, &TypeMismatchError{Path: field.Name, Kind: field.Kind, Operand: value}
		}
		normalized[field.Name] = v
	}

	for name, field := range schema.Fields {
		if name == schema.PK {
			continue
		}
		if v := normalized[name]; v == nil {
			if !field.Nullable {
				return nil, fmt.Errorf("%w: %s.%s", ErrNotNullable, schema.Name, name)
			}
			normalized[name] = nil
		}
	}

	return normalized, nil
}

// Bind maps records read elsewhere onto the stored records with the same
// primary keys, keeping their order.
func (store *Store) Bind(name string, records []Record) (Set, error) {
	set, err := store.All(name)
	if err != nil {
		return Set{}, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	bound := make([]Record, 0, len(records))
	for _, rec := range records {
		id, ok := normalize(KindInt, rec[set.schema.PK])
		if !ok || id == nil {
			return Set{}, fmt.Errorf("%w: %s record without %s", ErrNoSuchRecord, name, set.schema.PK)
		}
		stored, err := store.lookup(name, id.(ID))
		if err != nil {
			return Set{}, err
		}
		bound = append(bound, stored)
	}

	return set.with(bound), nil
}

// Clone copies every collection and join table into a new store sharing
// the same schemas.
func (store *Store) Clone() *Store {
	store.mu.RLock()
	defer store.mu.RUnlock()

	clone := NewStore(lo.Values(store.schemas)...)
	for name, coll := range store.collections {
		for _, rec := range coll.records {
			clone.collections[name].add(maps.Clone(rec))
		}
	}
	for name, join := range store.joins {
		clone.joins[name] = &joinTable{
			name:    join.name,
			columns: join.columns,
			pairs:   slices.Clone(join.pairs),
		}
	}

	return clone
}
