package queryset

import (
	"errors"
	"strings"
)

type stepKind int

const (
	stepFilter stepKind = iota
	stepExclude
	stepAny
)

type step struct {
	kind   stepKind
	groups []Predicates
}

// Query is a lazily evaluated chain of filters, orderings and a slice over
// one collection. Builder methods return a modified copy; errors are
// collected and reported by Err and by every finisher.
type Query struct {
	store      *Store
	collection string

	steps    []step
	ordering []string
	offset   int
	limit    int

	errors []error
}

func (store *Store) Query(collection string) Query {
	query := Query{store: store, collection: collection}
	if _, err := store.Schema(collection); err != nil {
		query.addError(err)
	}
	return query
}

func (query Query) clone() Query {
	query.steps = append([]step(nil), query.steps...)
	query.ordering = append([]string(nil), query.ordering...)
	query.errors = append([]error(nil), query.errors...)
	return query
}

func (query Query) Filter(predicates Predicates) Query {
	query = query.clone()
	query.checkPredicates(predicates)
	query.steps = append(query.steps, step{kind: stepFilter, groups: []Predicates{predicates}})
	return query
}

func (query Query) Exclude(predicates Predicates) Query {
	query = query.clone()
	query.checkPredicates(predicates)
	query.steps = append(query.steps, step{kind: stepExclude, groups: []Predicates{predicates}})
	return query
}

// FilterAny keeps the records matching at least one group.
func (query Query) FilterAny(groups ...Predicates) Query {
	query = query.clone()
	query.checkPredicates(groups...)
	query.steps = append(query.steps, step{kind: stepAny, groups: groups})
	return query
}

// OrderBy replaces the ordering. A leading "-" sorts that field descending.
func (query Query) OrderBy(keys ...string) Query {
	query = query.clone()
	query.ordering = append([]string(nil), keys...)
	for _, key := range keys {
		if !query.valid() {
			break
		}
		if _, err := query.store.Resolve(query.collection, strings.TrimPrefix(key, "-")); err != nil {
			query.addError(err)
		}
	}
	return query
}

// Slice keeps limit records starting at offset. A limit of zero keeps the rest.
func (query Query) Slice(offset, limit int) Query {
	query = query.clone()
	query.offset, query.limit = offset, limit
	return query
}

func (query Query) Limit(n int) Query {
	return query.Slice(query.offset, n)
}

// =================
// Finishers
// =================

func (query Query) Err() error {
	return errors.Join(query.errors...)
}

// Set evaluates the query.
func (query Query) Set() (Set, error) {
	if err := query.Err(); err != nil {
		return Set{}, err
	}

	set, err := query.store.All(query.collection)
	if err != nil {
		return Set{}, err
	}

	for _, s := range query.steps {
		switch s.kind {
		case stepFilter:
			set, err = Filter(set, s.groups[0])
		case stepExclude:
			set, err = Exclude(set, s.groups[0])
		case stepAny:
			set, err = FilterAny(set, s.groups...)
		}
		if err != nil {
			return Set{}, err
		}
	}

	if set, err = OrderByKeys(set, query.ordering...); err != nil {
		return Set{}, err
	}

	return Paginate(set, query.offset, query.limit), nil
}

func (query Query) All() ([]Record, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return set.Records(), nil
}

func (query Query) Count() (int, error) {
	set, err := query.Set()
	if err != nil {
		return 0, err
	}
	return set.Len(), nil
}

func (query Query) Exists() (bool, error) {
	n, err := query.Count()
	return n > 0, err
}

// First returns the first record, ordered by primary key when the query
// has no ordering.
func (query Query) First() (Record, error) {
	records, err := query.ordered().All()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoSuchRecord
	}
	return records[0], nil
}

// Last returns the last record, ordered by primary key when the query has
// no ordering.
func (query Query) Last() (Record, error) {
	records, err := query.ordered().All()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoSuchRecord
	}
	return records[len(records)-1], nil
}

func (query Query) Aggregate(field string, kind Aggregation) (any, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return Aggregate(set, field, kind)
}

func (query Query) Distinct(field string) ([]any, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return Distinct(set, field)
}

func (query Query) Values(fields ...string) ([][]any, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return Values(set, fields...)
}

func (query Query) Flat(field string) ([]any, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return Flat(set, field)
}

func (query Query) GroupBy(groupField, valueField string, kind Aggregation) ([]Group, error) {
	set, err := query.Set()
	if err != nil {
		return nil, err
	}
	return GroupBy(set, groupField, valueField, kind)
}

// =================
// Utilities
// =================

func (query Query) ordered() Query {
	if len(query.ordering) > 0 {
		return query
	}
	return query.OrderBy("pk")
}

// valid reports whether the collection exists, so field checks are meaningful.
func (query Query) valid() bool {
	_, err := query.store.Schema(query.collection)
	return err == nil
}

func (query *Query) checkPredicates(groups ...Predicates) {
	if !query.valid() {
		return
	}
	for _, group := range groups {
		if _, err := query.store.CompilePredicates(query.collection, group); err != nil {
			query.addError(err)
		}
	}
}

func (query *Query) addError(err error) {
	query.errors = append(query.errors, err)
}
