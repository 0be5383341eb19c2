package queryset

type RelationKind int

const (
	// RelForeignKey follows a ref field on the source record to one target record.
	RelForeignKey RelationKind = iota + 1
	// RelReverse collects the target records whose ref field points at the source.
	RelReverse
	// RelManyToMany follows identifier pairs stored in a join table.
	RelManyToMany
)

type Relation struct {
	Kind   RelationKind
	Target string

	// Field is the ref field: on the source for RelForeignKey, on the target for RelReverse.
	Field string

	// Through names the join table of a RelManyToMany, with the columns
	// holding the source and the target identifiers.
	Through   string
	SourceCol string
	TargetCol string
}

func HasOne(target, field string) Relation {
	return Relation{Kind: RelForeignKey, Target: target, Field: field}
}

func HasMany(target, field string) Relation {
	return Relation{Kind: RelReverse, Target: target, Field: field}
}

func ManyToMany(target, through, sourceCol, targetCol string) Relation {
	return Relation{
		Kind:      RelManyToMany,
		Target:    target,
		Through:   through,
		SourceCol: sourceCol,
		TargetCol: targetCol,
	}
}

// Many reports whether the relation may yield more than one record.
func (rel Relation) Many() bool { return rel.Kind != RelForeignKey }

// related returns the records of the target collection bound to parent.
func (store *Store) related(rel Relation, parent Record, parentPK string) []Record {
	store.mu.RLock()
	defer store.mu.RUnlock()

	target, ok := store.collections[rel.Target]
	if !ok {
		return nil
	}

	switch rel.Kind {
	case RelForeignKey:
		id, ok := parent[rel.Field].(ID)
		if !ok {
			return nil
		}
		if child, ok := target.get(id); ok {
			return []Record{child}
		}
	case RelReverse:
		id, ok := parent[parentPK].(ID)
		if !ok {
			return nil
		}
		var children []Record
		for _, ix := range target.refs[rel.Field][id] {
			children = append(children, target.records[ix])
		}
		return children
	case RelManyToMany:
		id, ok := parent[parentPK].(ID)
		if !ok {
			return nil
		}
		join, ok := store.joins[rel.Through]
		if !ok {
			return nil
		}
		var children []Record
		for _, targetID := range join.lookup(rel.SourceCol, id) {
			if child, ok := target.get(targetID); ok {
				children = append(children, child)
			}
		}
		return children
	}

	return nil
}
