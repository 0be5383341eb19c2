package queryset

// Set is a sequence of records bound to their schema. Relationship hops
// are resolved through the store the records came from.
type Set struct {
	store   *Store
	schema  *Schema
	records []Record
}

// NewSet binds loose records to a schema without a store, so field paths
// cannot leave the schema. Records are normalized as on insert.
func NewSet(schema *Schema, records []Record) (Set, error) {
	normalized := make([]Record, 0, len(records))
	for _, rec := range records {
		n, err := normalizeLoose(schema, rec)
		if err != nil {
			return Set{}, err
		}
		normalized = append(normalized, n)
	}

	return Set{schema: schema, records: normalized}, nil
}

func (set Set) Schema() *Schema { return set.schema }

// Records returns the records of the set. They are shared with the store
// and must be treated as read-only; Store.Get returns a copy to modify.
func (set Set) Records() []Record { return set.records }

func (set Set) Len() int { return len(set.records) }

// IDs returns the primary keys of the records in order.
func (set Set) IDs() []ID {
	ids := make([]ID, 0, len(set.records))
	for _, rec := range set.records {
		if id, ok := rec[set.schema.PK].(ID); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (set Set) with(records []Record) Set {
	set.records = records
	return set
}

func (set Set) resolve(path string) (Path, error) {
	return resolvePath(set.store, set.schema, path)
}

// normalizeLoose normalizes present fields only; absent fields stay absent
// and read as null.
func normalizeLoose(schema *Schema, rec Record) (Record, error) {
	normalized := make(Record, len(rec))
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
	return normalized, nil
}
