package queryset

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// OrderBy sorts the set by field with a stable sort. Nulls come first when
// ascending and last when descending.
func OrderBy(set Set, field string, descending bool) (Set, error) {
	path, err := set.resolve(field)
	if err != nil {
		return Set{}, err
	}

	return set.with(sortRecords(set, []orderKey{{path: path, descending: descending}})), nil
}

// OrderByKeys sorts by several fields. A leading "-" sorts that field descending.
func OrderByKeys(set Set, keys ...string) (Set, error) {
	parsed := make([]orderKey, 0, len(keys))
	for _, key := range keys {
		name, descending := strings.CutPrefix(key, "-")
		path, err := set.resolve(name)
		if err != nil {
			return Set{}, err
		}
		parsed = append(parsed, orderKey{path: path, descending: descending})
	}
	if len(parsed) == 0 {
		return set, nil
	}

	return set.with(sortRecords(set, parsed)), nil
}

type orderKey struct {
	path       Path
	descending bool
}

func sortRecords(set Set, keys []orderKey) []Record {
	type row struct {
		rec  Record
		keys []any
	}

	rows := lo.Map(set.records, func(rec Record, _ int) row {
		return row{
			rec:  rec,
			keys: lo.Map(keys, func(k orderKey, _ int) any { return k.path.first(set.store, rec) }),
		}
	})

	slices.SortStableFunc(rows, func(a, b row) int {
		for i, key := range keys {
			c := compareNullable(a.keys[i], b.keys[i])
			if key.descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	return lo.Map(rows, func(r row, _ int) Record { return r.rec })
}

// Paginate returns at most limit records starting at offset. A limit of
// zero or less runs to the end. Out of range bounds yield fewer records.
func Paginate(set Set, offset, limit int) Set {
	end := len(set.records)
	offset = min(max(offset, 0), end)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}

	return set.with(lo.Slice(set.records, offset, end))
}

// Values projects each record onto the given field paths. A path through a
// to-many relation yields its first related value.
func Values(set Set, fields ...string) ([][]any, error) {
	if set.schema == nil {
		return nil, errNoSchema
	}
	if len(fields) == 0 {
		fields = set.schema.Columns()
	}

	paths := make([]Path, 0, len(fields))
	for _, field := range fields {
		path, err := set.resolve(field)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return lo.Map(set.records, func(rec Record, _ int) []any {
		return lo.Map(paths, func(path Path, _ int) any { return path.first(set.store, rec) })
	}), nil
}

// Flat projects each record onto a single field path.
func Flat(set Set, field string) ([]any, error) {
	rows, err := Values(set, field)
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(row []any, _ int) any { return row[0] }), nil
}
