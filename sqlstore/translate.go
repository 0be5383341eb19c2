package sqlstore

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	"pollex.nl/queryset"
)

// ErrUnsupported is returned for query shapes that have no SQL translation.
var ErrUnsupported = errors.New("not supported in SQL")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Translate builds the SQL condition for filtering collection with
// predicates. Relation hops become correlated EXISTS subqueries, so a
// to-many hop matches when any related row matches.
//
// The result matches the in-memory filter with one exception: SQLite's
// LOWER and LIKE fold ASCII letters only, so icontains and istartswith
// ignore case for ASCII alone, where the in-memory filter folds every
// Unicode letter.
func Translate(store *queryset.Store, collection string, predicates queryset.Predicates) (func(table string) squirrel.Sqlizer, error) {
	terms, err := store.CompilePredicates(collection, predicates)
	if err != nil {
		return nil, err
	}

	return func(table string) squirrel.Sqlizer {
		return squirrel.And(lo.Map(terms, func(term queryset.Term, _ int) squirrel.Sqlizer {
			return termSql(term, table)
		}))
	}, nil
}

func termSql(term queryset.Term, table string) squirrel.Sqlizer {
	if len(term.Path.Hops) == 0 {
		return columnCond(term, column(table, term.Path))
	}

	terminal := func(alias string) squirrel.Sqlizer {
		return columnCond(term, column(alias, term.Path))
	}

	if term.Op == queryset.OpIsNull && term.Null {
		// No related row at all, or a related row holding null.
		return squirrel.Or{
			not(exists(term.Path.Hops, table, 1, nil)),
			exists(term.Path.Hops, table, 1, terminal),
		}
	}

	return exists(term.Path.Hops, table, 1, terminal)
}

func exists(hops []queryset.Hop, outer string, depth int, cond func(alias string) squirrel.Sqlizer) squirrel.Sqlizer {
	h := hops[0]
	alias := fmt.Sprintf("t%d", depth)
	target := h.To.Name + " AS " + alias

	var sub Q
	switch h.Relation.Kind {
	case queryset.RelForeignKey:
		sub = squirrel.Select("1").From(target).
			Where(TableCol(alias, h.To.PK) + " = " + TableCol(outer, h.Relation.Field))
	case queryset.RelReverse:
		sub = squirrel.Select("1").From(target).
			Where(TableCol(alias, h.Relation.Field) + " = " + TableCol(outer, h.From.PK))
	default:
		join := fmt.Sprintf("j%d", depth)
		sub = squirrel.Select("1").From(h.Relation.Through + " AS " + join).
			Join(target + " ON " + TableCol(alias, h.To.PK) + " = " + TableCol(join, h.Relation.TargetCol)).
			Where(TableCol(join, h.Relation.SourceCol) + " = " + TableCol(outer, h.From.PK))
	}

	switch {
	case len(hops) > 1:
		sub = sub.Where(exists(hops[1:], alias, depth+1, cond))
	case cond != nil:
		sub = sub.Where(cond(alias))
	}

	return wrap("EXISTS (%s)", sub)
}

func not(cond squirrel.Sqlizer) squirrel.Sqlizer {
	return wrap("NOT %s", cond)
}

// wrap embeds the SQL of cond into format, keeping its arguments.
func wrap(format string, cond squirrel.Sqlizer) squirrel.Sqlizer {
	sql, args, err := cond.ToSql()
	if err != nil {
		return errSqlizer{err}
	}
	return squirrel.Expr(fmt.Sprintf(format, sql), args...)
}

type errSqlizer struct{ err error }

func (e errSqlizer) ToSql() (string, []any, error) { return "", nil, e.err }

// column is the SQL expression reading the last field of path on table.
func column(table string, path queryset.Path) string {
	col := TableCol(table, path.Field.Name)
	switch path.Transform {
	case queryset.PartYear:
		return "CAST(strftime('%Y', " + col + ") AS INTEGER)"
	case queryset.PartMonth:
		return "CAST(strftime('%m', " + col + ") AS INTEGER)"
	case queryset.PartDay:
		return "CAST(strftime('%d', " + col + ") AS INTEGER)"
	}
	return col
}

func columnCond(term queryset.Term, col string) squirrel.Sqlizer {
	switch term.Op {
	case queryset.OpExact:
		return squirrel.Eq{col: term.Operand}
	case queryset.OpContains:
		return squirrel.Expr("instr("+col+", ?) > 0", term.Operand)
	case queryset.OpIContains:
		return squirrel.Expr("LOWER("+col+`) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(term.Operand.(string))+"%")
	case queryset.OpStartsWith:
		s := term.Operand.(string)
		return squirrel.Expr("substr("+col+", 1, ?) = ?", utf8.RuneCountInString(s), s)
	case queryset.OpIStartsWith:
		return squirrel.Expr("LOWER("+col+`) LIKE ? ESCAPE '\'`, likeEscaper.Replace(term.Operand.(string))+"%")
	case queryset.OpGt:
		return squirrel.Gt{col: term.Operand}
	case queryset.OpGte:
		return squirrel.GtOrEq{col: term.Operand}
	case queryset.OpLt:
		return squirrel.Lt{col: term.Operand}
	case queryset.OpLte:
		return squirrel.LtOrEq{col: term.Operand}
	case queryset.OpIn:
		return squirrel.Eq{col: term.Set}
	case queryset.OpIsNull:
		if term.Null {
			return squirrel.Eq{col: nil}
		}
		return squirrel.NotEq{col: nil}
	}
	return errSqlizer{fmt.Errorf("%w: operator %q", ErrUnsupported, term.Op)}
}
