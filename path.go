package queryset

import (
	"time"

	"github.com/samber/lo"
)

// Date fields accept one of these as a trailing path segment, e.g. "joindate.year".
const (
	PartYear  = "year"
	PartMonth = "month"
	PartDay   = "day"
)

// Hop is one relationship traversal of a path.
type Hop struct {
	From     *Schema
	Relation Relation
	To       *Schema
}

// Path is a dotted field reference resolved against a schema.
type Path struct {
	Raw  string
	Hops []Hop
	// Field is read on the last schema of the path.
	Field     FieldType
	Transform string
	// Many is set when any hop may yield more than one record.
	Many bool
}

// Resolve checks a field path against a collection of the store.
func (store *Store) Resolve(collection, path string) (Path, error) {
	schema, err := store.Schema(collection)
	if err != nil {
		return Path{}, err
	}
	return resolvePath(store, schema, path)
}

func resolvePath(store *Store, schema *Schema, path string) (Path, error) {
	if schema == nil {
		return Path{}, errNoSchema
	}

	fp := Path{Raw: path}
	current, rest := schema, path

	for {
		name, next, nested := isNested(rest)
		if name == "" || nested && next == "" {
			return Path{}, invalidField(schema.Name, path)
		}

		if field, ok := current.field(name); ok {
			fp.Field = field
			switch {
			case next == "":
				return fp, nil
			case field.Kind == KindDate && isDatePart(next):
				fp.Transform = next
				return fp, nil
			default:
				return Path{}, invalidField(schema.Name, path)
			}
		}

		rel, ok := current.Relations[name]
		if !ok || store == nil {
			return Path{}, invalidField(schema.Name, path)
		}
		target, err := store.Schema(rel.Target)
		if err != nil {
			return Path{}, invalidField(schema.Name, path)
		}

		fp.Hops = append(fp.Hops, Hop{From: current, Relation: rel, To: target})
		fp.Many = fp.Many || rel.Many()
		current = target

		// A bare relation compares the primary key of the related record.
		if next == "" {
			fp.Field = target.Fields[target.PK]
			return fp, nil
		}
		rest = next
	}
}

func isDatePart(name string) bool {
	return name == PartYear || name == PartMonth || name == PartDay
}

// Kind is the kind of the values the path produces.
func (fp Path) Kind() Kind {
	if fp.Transform != "" {
		return KindInt
	}
	return fp.Field.Kind
}

// values returns every value reached from rec. A broken chain of
// single-valued hops yields one nil; an empty to-many hop yields nothing.
func (fp Path) values(store *Store, rec Record) []any {
	records := []Record{rec}
	for _, h := range fp.Hops {
		var next []Record
		for _, r := range records {
			next = append(next, store.related(h.Relation, r, h.From.PK)...)
		}
		records = next
	}

	if len(records) == 0 {
		if fp.Many {
			return nil
		}
		return []any{nil}
	}

	return lo.Map(records, func(r Record, _ int) any { return fp.extract(r) })
}

func (fp Path) first(store *Store, rec Record) any {
	values := fp.values(store, rec)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func (fp Path) extract(r Record) any {
	v := r[fp.Field.Name]
	if fp.Transform == "" || v == nil {
		return v
	}

	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	switch fp.Transform {
	case PartYear:
		return int64(t.Year())
	case PartMonth:
		return int64(t.Month())
	default:
		return int64(t.Day())
	}
}
