package sqlstore

import "github.com/Masterminds/squirrel"

type (
	Q        = squirrel.SelectBuilder
	QueryMod func(q Q, table string) Q
)

func Col(name string) QueryMod {
	return func(q Q, table string) Q { return q.Column(TableCol(table, name)) }
}

// Where filters on a condition built for the table being queried.
func Where(cond func(table string) squirrel.Sqlizer) QueryMod {
	return func(q Q, table string) Q { return q.Where(cond(table)) }
}

// Asc and Desc order by a column of the table being queried.
func Asc(name string) QueryMod {
	return func(q Q, table string) Q { return q.OrderBy(TableCol(table, name) + " ASC") }
}

func Desc(name string) QueryMod {
	return func(q Q, table string) Q { return q.OrderBy(TableCol(table, name) + " DESC") }
}

// Page applies OFFSET and LIMIT. A limit of zero or less keeps every row
// after offset.
func Page(offset, limit int) QueryMod {
	return func(q Q, _ string) Q {
		if limit > 0 {
			q = q.Limit(uint64(limit))
		} else if offset > 0 {
			// SQLite only accepts OFFSET after a LIMIT.
			q = q.Limit(1<<63 - 1)
		}
		if offset > 0 {
			q = q.Offset(uint64(offset))
		}
		return q
	}
}

func TableCol(table, name string) string {
	if table == "" {
		return name
	}
	return table + "." + name
}

func applyMods(q Q, table string, mods []QueryMod) Q {
	for _, mod := range mods {
		q = mod(q, table)
	}

	return q
}
