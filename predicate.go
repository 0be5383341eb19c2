package queryset

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
)

// ErrUnknownOperator is returned for a condition with an operator outside the Op constants.
var ErrUnknownOperator = errors.New("unknown operator")

type Op string

const (
	OpExact       Op = "exact"
	OpContains    Op = "contains"
	OpIContains   Op = "icontains"
	OpStartsWith  Op = "startswith"
	OpIStartsWith Op = "istartswith"
	OpGt          Op = "gt"
	OpGte         Op = "gte"
	OpLt          Op = "lt"
	OpLte         Op = "lte"
	OpIn          Op = "in"
	OpIsNull      Op = "isnull"
)

type Condition struct {
	Op    Op
	Value any
}

type (
	// Predicates maps a field path to the condition its values must meet.
	// All entries must hold for a record to match.
	Predicates map[string]Condition
)

func Exact(v any) Condition          { return Condition{OpExact, v} }
func Contains(s string) Condition    { return Condition{OpContains, s} }
func IContains(s string) Condition   { return Condition{OpIContains, s} }
func StartsWith(s string) Condition  { return Condition{OpStartsWith, s} }
func IStartsWith(s string) Condition { return Condition{OpIStartsWith, s} }
func Gt(v any) Condition             { return Condition{OpGt, v} }
func Gte(v any) Condition            { return Condition{OpGte, v} }
func Lt(v any) Condition             { return Condition{OpLt, v} }
func Lte(v any) Condition            { return Condition{OpLte, v} }
func IsNull(null bool) Condition     { return Condition{OpIsNull, null} }

func In[T any](values ...T) Condition {
	return Condition{OpIn, lo.Map(values, func(v T, _ int) any { return v })}
}

// Term is a condition compiled against a resolved path. Operand and Set
// hold normalized values; string operands of case-insensitive operators
// are lower-cased.
type Term struct {
	Path    Path
	Op      Op
	Operand any
	Set     []any
	Null    bool
}

// Compile type-checks cond against the kind of path.
func Compile(path Path, cond Condition) (Term, error) {
	p := Term{Path: path, Op: cond.Op}
	kind := path.Kind()
	mismatch := func(operand any) error {
		return &TypeMismatchError{Path: path.Raw, Kind: kind, Operand: operand}
	}

	switch cond.Op {
	case OpExact:
		if cond.Value == nil {
			p.Op, p.Null = OpIsNull, true
			return p, nil
		}
		v, ok := normalize(kind, cond.Value)
		if !ok {
			return p, mismatch(cond.Value)
		}
		p.Operand = v

	case OpContains, OpIContains, OpStartsWith, OpIStartsWith:
		if kind != KindString {
			return p, &TypeMismatchError{Path: path.Raw, Kind: kind, Op: string(cond.Op)}
		}
		s, ok := cond.Value.(string)
		if !ok {
			return p, mismatch(cond.Value)
		}
		if cond.Op == OpIContains || cond.Op == OpIStartsWith {
			s = strings.ToLower(s)
		}
		p.Operand = s

	case OpGt, OpGte, OpLt, OpLte:
		if !kind.ordered() {
			return p, &TypeMismatchError{Path: path.Raw, Kind: kind, Op: string(cond.Op)}
		}
		v, ok := normalize(kind, cond.Value)
		if !ok || v == nil {
			return p, mismatch(cond.Value)
		}
		p.Operand = v

	case OpIn:
		rv := reflect.ValueOf(cond.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return p, mismatch(cond.Value)
		}
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			v, ok := normalize(kind, elem)
			if !ok || v == nil {
				return p, mismatch(elem)
			}
			p.Set = append(p.Set, v)
		}

	case OpIsNull:
		null, ok := cond.Value.(bool)
		if !ok {
			return p, mismatch(cond.Value)
		}
		p.Null = null

	default:
		return p, fmt.Errorf("%w: %q on %s", ErrUnknownOperator, cond.Op, path.Raw)
	}

	return p, nil
}

func (p Term) match(store *Store, rec Record) bool {
	values := p.Path.values(store, rec)

	if p.Op == OpIsNull {
		if len(values) == 0 {
			return p.Null
		}
		return lo.SomeBy(values, func(v any) bool { return (v == nil) == p.Null })
	}

	return lo.SomeBy(values, func(v any) bool { return v != nil && p.test(v) })
}

func (p Term) test(v any) bool {
	switch p.Op {
	case OpExact:
		return equalValues(v, p.Operand)
	case OpContains:
		return strings.Contains(v.(string), p.Operand.(string))
	case OpIContains:
		return strings.Contains(strings.ToLower(v.(string)), p.Operand.(string))
	case OpStartsWith:
		return strings.HasPrefix(v.(string), p.Operand.(string))
	case OpIStartsWith:
		return strings.HasPrefix(strings.ToLower(v.(string)), p.Operand.(string))
	case OpGt:
		return compareValues(v, p.Operand) > 0
	case OpGte:
		return compareValues(v, p.Operand) >= 0
	case OpLt:
		return compareValues(v, p.Operand) < 0
	case OpLte:
		return compareValues(v, p.Operand) <= 0
	case OpIn:
		return lo.SomeBy(p.Set, func(candidate any) bool { return equalValues(v, candidate) })
	}
	return false
}
