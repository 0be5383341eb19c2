package queryset

import (
	"cmp"
	"fmt"
	"slices"
)

// JoinPair holds one row of a join table, in the column order of the table.
type JoinPair struct {
	Left  ID
	Right ID
}

type joinTable struct {
	name    string
	columns [2]string
	pairs   []JoinPair
}

func newJoinTable(name, left, right string) *joinTable {
	return &joinTable{name: name, columns: [2]string{left, right}}
}

// lookup returns the identifiers paired with id, where id is read from column col.
func (join *joinTable) lookup(col string, id ID) []ID {
	var out []ID
	for _, p := range join.pairs {
		switch col {
		case join.columns[0]:
			if p.Left == id {
				out = append(out, p.Right)
			}
		case join.columns[1]:
			if p.Right == id {
				out = append(out, p.Left)
			}
		}
	}
	return out
}

func (join *joinTable) orient(col string, source, target ID) (JoinPair, error) {
	switch col {
	case join.columns[0]:
		return JoinPair{Left: source, Right: target}, nil
	case join.columns[1]:
		return JoinPair{Left: target, Right: source}, nil
	}
	return JoinPair{}, fmt.Errorf("%w: %s.%s", ErrNoSuchField, join.name, col)
}

// JoinTable describes a registered join table.
type JoinTable struct {
	Name    string
	Columns [2]string
}

// JoinTables lists the join tables of all many-to-many relations.
func (store *Store) JoinTables() []JoinTable {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var tables []JoinTable
	for _, join := range store.joins {
		tables = append(tables, JoinTable{Name: join.name, Columns: join.columns})
	}
	slices.SortFunc(tables, func(a, b JoinTable) int { return cmp.Compare(a.Name, b.Name) })
	return tables
}

// Pairs returns a copy of the rows of a join table.
func (store *Store) Pairs(table string) ([]JoinPair, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	join, ok := store.joins[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchCollection, table)
	}
	return slices.Clone(join.pairs), nil
}

// AddPair inserts a raw join table row. Duplicates are ignored.
func (store *Store) AddPair(table string, pair JoinPair) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	join, ok := store.joins[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchCollection, table)
	}
	join.add(pair)
	return nil
}

func (join *joinTable) add(pair JoinPair) {
	if !slices.Contains(join.pairs, pair) {
		join.pairs = append(join.pairs, pair)
	}
}

// Link pairs a source record with a target record through a many-to-many relation.
func (store *Store) Link(collection, relation string, source, target ID) error {
	rel, join, err := store.manyToMany(collection, relation)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	pair, err := store.linkPair(collection, rel, join, source, target)
	if err != nil {
		return err
	}
	join.add(pair)
	return nil
}

// Unlink removes the pair of source and target from a many-to-many relation.
func (store *Store) Unlink(collection, relation string, source, target ID) error {
	rel, join, err := store.manyToMany(collection, relation)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	pair, err := store.linkPair(collection, rel, join, source, target)
	if err != nil {
		return err
	}
	join.pairs = slices.DeleteFunc(join.pairs, func(p JoinPair) bool { return p == pair })
	return nil
}

// SetLinks replaces every target linked to source with targets. The targets
// are checked and swapped in under one lock, so a failed check changes nothing.
func (store *Store) SetLinks(collection, relation string, source ID, targets ...ID) error {
	rel, join, err := store.manyToMany(collection, relation)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	pairs := make([]JoinPair, 0, len(targets))
	for _, target := range targets {
		pair, err := store.linkPair(collection, rel, join, source, target)
		if err != nil {
			return err
		}
		if !slices.Contains(pairs, pair) {
			pairs = append(pairs, pair)
		}
	}

	sourceIndex := 0
	if rel.SourceCol == join.columns[1] {
		sourceIndex = 1
	}
	join.pairs = slices.DeleteFunc(join.pairs, func(p JoinPair) bool {
		if sourceIndex == 0 {
			return p.Left == source
		}
		return p.Right == source
	})
	join.pairs = append(join.pairs, pairs...)

	return nil
}

// linkPair checks both ends of a link and orients it for join. The caller
// holds store.mu.
func (store *Store) linkPair(collection string, rel Relation, join *joinTable, source, target ID) (JoinPair, error) {
	if _, err := store.lookup(collection, source); err != nil {
		return JoinPair{}, err
	}
	if _, err := store.lookup(rel.Target, target); err != nil {
		return JoinPair{}, err
	}
	return join.orient(rel.SourceCol, source, target)
}

func (store *Store) manyToMany(collection, relation string) (Relation, *joinTable, error) {
	schema, err := store.Schema(collection)
	if err != nil {
		return Relation{}, nil, err
	}
	rel, ok := schema.Relations[relation]
	if !ok || rel.Kind != RelManyToMany {
		return Relation{}, nil, invalidField(collection, relation)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	join, ok := store.joins[rel.Through]
	if !ok {
		return Relation{}, nil, fmt.Errorf("%w: %s", ErrNoSuchCollection, rel.Through)
	}
	return rel, join, nil
}
