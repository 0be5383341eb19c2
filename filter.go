package queryset

import (
	"slices"

	"github.com/samber/lo"
)

// Filter returns the records matching every predicate, in input order.
// Field paths are checked against the schema before any record is read.
func Filter(set Set, predicates Predicates) (Set, error) {
	terms, err := compilePredicates(set, predicates)
	if err != nil {
		return Set{}, err
	}
	if len(terms) == 0 {
		return set, nil
	}

	return set.with(lo.Filter(set.records, func(rec Record, _ int) bool {
		return matchAll(set.store, terms, rec)
	})), nil
}

// Exclude drops the records matching every predicate. An empty predicate
// set excludes nothing.
func Exclude(set Set, predicates Predicates) (Set, error) {
	terms, err := compilePredicates(set, predicates)
	if err != nil {
		return Set{}, err
	}
	if len(terms) == 0 {
		return set, nil
	}

	return set.with(lo.Reject(set.records, func(rec Record, _ int) bool {
		return matchAll(set.store, terms, rec)
	})), nil
}

// FilterAny returns the records matching at least one of the predicate groups.
func FilterAny(set Set, groups ...Predicates) (Set, error) {
	compiled := make([][]Term, 0, len(groups))
	for _, group := range groups {
		terms, err := compilePredicates(set, group)
		if err != nil {
			return Set{}, err
		}
		compiled = append(compiled, terms)
	}

	return set.with(lo.Filter(set.records, func(rec Record, _ int) bool {
		return lo.SomeBy(compiled, func(terms []Term) bool { return matchAll(set.store, terms, rec) })
	})), nil
}

// CompilePredicates resolves and type-checks predicates against a
// collection. Terms are ordered by field path.
func (store *Store) CompilePredicates(collection string, predicates Predicates) ([]Term, error) {
	schema, err := store.Schema(collection)
	if err != nil {
		return nil, err
	}
	return compilePredicates(Set{store: store, schema: schema}, predicates)
}

func compilePredicates(set Set, predicates Predicates) ([]Term, error) {
	paths := lo.Keys(predicates)
	slices.Sort(paths)

	terms := make([]Term, 0, len(paths))
	for _, raw := range paths {
		path, err := set.resolve(raw)
		if err != nil {
			return nil, err
		}
		term, err := Compile(path, predicates[raw])
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	return terms, nil
}

func matchAll(store *Store, terms []Term, rec Record) bool {
	for _, term := range terms {
		if !term.match(store, rec) {
			return false
		}
	}
	return true
}
