package queryset

import (
	"fmt"
	"strings"
)

// Kind is the declared type of a field.
type Kind int

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindDate
	KindBool
	// KindRef holds the primary key of a record in another collection.
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) numeric() bool { return k == KindInt || k == KindFloat }

func (k Kind) ordered() bool { return k != KindBool }

type FieldType struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema describes one collection of records.
type Schema struct {
	Name      string
	PK        string
	Fields    map[string]FieldType
	Relations map[string]Relation

	columns []string
}

// New creates a schema with an integer primary key named "id".
func New(name string) *Schema {
	schema := &Schema{
		Name:      name,
		PK:        "id",
		Fields:    map[string]FieldType{},
		Relations: make(map[string]Relation),
	}

	return schema.AddFieldType(FieldType{Name: "id", Kind: KindInt})
}

func (schema *Schema) AddFieldType(field FieldType) *Schema {
	if _, ok := schema.Fields[field.Name]; !ok {
		schema.columns = append(schema.columns, field.Name)
	}
	schema.Fields[field.Name] = field

	return schema
}

func (schema *Schema) AddField(name string, kind Kind) *Schema {
	return schema.AddFieldType(FieldType{Name: name, Kind: kind})
}

func (schema *Schema) AddNullableField(name string, kind Kind) *Schema {
	return schema.AddFieldType(FieldType{Name: name, Kind: kind, Nullable: true})
}

func (schema *Schema) AddRelation(name string, relation Relation) *Schema {
	schema.Relations[name] = relation

	return schema
}

// Columns returns the field names in declaration order, primary key first.
func (schema *Schema) Columns() []string {
	return append([]string(nil), schema.columns...)
}

func (schema *Schema) field(name string) (FieldType, bool) {
	if name == "pk" {
		name = schema.PK
	}
	field, ok := schema.Fields[name]
	return field, ok
}

// isNested splits the first segment off a dotted path. nested reports
// whether a dot was present, so "price." is told apart from "price".
func isNested(name string) (first, rest string, nested bool) {
	return strings.Cut(name, ".")
}
