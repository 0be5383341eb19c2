package sqlstore

import (
	"database/sql"

	"pollex.nl/queryset"
)

type (
	Ptrs    []any
	Action  func()
	RowScan func(rec queryset.Record) (Ptrs, Action)
)

// scanField scans one column into rec, mapping SQL NULL to nil.
func scanField(field queryset.FieldType) RowScan {
	return func(rec queryset.Record) (Ptrs, Action) {
		switch field.Kind {
		case queryset.KindInt, queryset.KindRef:
			var v sql.NullInt64
			return Ptrs{&v}, func() { rec[field.Name] = nullable(v.Int64, v.Valid) }
		case queryset.KindFloat:
			var v sql.NullFloat64
			return Ptrs{&v}, func() { rec[field.Name] = nullable(v.Float64, v.Valid) }
		case queryset.KindDate:
			var v sql.NullTime
			return Ptrs{&v}, func() { rec[field.Name] = nullable(v.Time, v.Valid) }
		case queryset.KindBool:
			var v sql.NullBool
			return Ptrs{&v}, func() { rec[field.Name] = nullable(v.Bool, v.Valid) }
		default:
			var v sql.NullString
			return Ptrs{&v}, func() { rec[field.Name] = nullable(v.String, v.Valid) }
		}
	}
}

func nullable[T any](v T, valid bool) any {
	if !valid {
		return nil
	}
	return v
}

func flattenRowScan(rowScans []RowScan) RowScan {
	return func(rec queryset.Record) (Ptrs, Action) {
		var (
			pointers Ptrs
			actions  []Action
		)
		for _, rowScan := range rowScans {
			ptr, action := rowScan(rec)
			pointers = append(pointers, ptr...)
			if action != nil {
				actions = append(actions, action)
			}
		}

		return pointers, flattenActions(actions)
	}
}

func flattenActions(actions []Action) Action {
	return func() {
		for _, action := range actions {
			action()
		}
	}
}
