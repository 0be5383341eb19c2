package queryset

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// ErrUnknownAggregation is returned for an aggregation outside the Aggregation constants.
var ErrUnknownAggregation = errors.New("unknown aggregation")

type Aggregation string

const (
	Sum   Aggregation = "sum"
	Avg   Aggregation = "avg"
	Max   Aggregation = "max"
	Min   Aggregation = "min"
	Count Aggregation = "count"
)

// Aggregate computes a scalar over the values of field. Null values are
// skipped. Count returns the number of records as an int; every other
// aggregation returns nil when there is no value to aggregate.
//
// Sum yields int64 for int fields and float64 for float fields, Avg always
// float64, Max and Min the value type of the field.
func Aggregate(set Set, field string, kind Aggregation) (any, error) {
	path, err := set.resolve(field)
	if err != nil {
		return nil, err
	}
	if err := checkAggregation(path, kind); err != nil {
		return nil, err
	}

	return aggregate(set, path, kind), nil
}

func checkAggregation(path Path, kind Aggregation) error {
	switch kind {
	case Count:
		return nil
	case Sum, Avg:
		if !path.Kind().numeric() {
			return &TypeMismatchError{Path: path.Raw, Kind: path.Kind(), Op: string(kind)}
		}
	case Max, Min:
		if !path.Kind().ordered() {
			return &TypeMismatchError{Path: path.Raw, Kind: path.Kind(), Op: string(kind)}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAggregation, kind)
	}
	return nil
}

func aggregate(set Set, path Path, kind Aggregation) any {
	if kind == Count {
		return len(set.records)
	}

	values := lo.Reject(
		lo.FlatMap(set.records, func(rec Record, _ int) []any { return path.values(set.store, rec) }),
		func(v any, _ int) bool { return v == nil },
	)
	if len(values) == 0 {
		return nil
	}

	switch kind {
	case Sum:
		return sumValues(values)
	case Avg:
		return toFloat(sumValues(values)) / float64(len(values))
	case Max:
		return lo.MaxBy(values, func(a, b any) bool { return compareValues(a, b) > 0 })
	case Min:
		return lo.MinBy(values, func(a, b any) bool { return compareValues(a, b) < 0 })
	}
	return nil
}

func sumValues(values []any) any {
	var (
		ints    int64
		floats  float64
		isFloat bool
	)
	for _, v := range values {
		switch n := v.(type) {
		case int64:
			ints += n
		case float64:
			floats += n
			isFloat = true
		}
	}
	if isFloat {
		return floats + float64(ints)
	}
	return ints
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// Group is one bucket of GroupBy.
type Group struct {
	Key   any
	Count int
	Value any
	Set   Set
}

// GroupBy partitions the set by the value of groupField, in first-seen
// order, and aggregates valueField within every group.
func GroupBy(set Set, groupField, valueField string, kind Aggregation) ([]Group, error) {
	keyPath, err := set.resolve(groupField)
	if err != nil {
		return nil, err
	}
	valuePath, err := set.resolve(valueField)
	if err != nil {
		return nil, err
	}
	if err := checkAggregation(valuePath, kind); err != nil {
		return nil, err
	}

	var (
		order   []any
		grouped = map[any][]Record{}
	)
	for _, rec := range set.records {
		key := groupKey(keyPath.first(set.store, rec))
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], rec)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		sub := set.with(grouped[key])
		groups = append(groups, Group{
			Key:   key,
			Count: sub.Len(),
			Value: aggregate(sub, valuePath, kind),
			Set:   sub,
		})
	}

	return groups, nil
}

// Distinct returns the unique values of field in first-seen order.
func Distinct(set Set, field string) ([]any, error) {
	path, err := set.resolve(field)
	if err != nil {
		return nil, err
	}

	values := lo.FlatMap(set.records, func(rec Record, _ int) []any { return path.values(set.store, rec) })
	return lo.UniqBy(values, groupKey), nil
}
