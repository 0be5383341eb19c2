// Package sqlstore materializes queryset collections from SQLite and runs
// queryset predicates as SQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/samber/lo"
	"pollex.nl/queryset"
)

// Options narrows a Select. Ordering keys use a leading "-" for descending
// and must name fields of the collection itself.
type Options struct {
	Where   queryset.Predicates
	OrderBy []string
	Offset  int
	Limit   int
}

// Load reads every registered collection and join table into store.
func Load(ctx context.Context, db squirrel.BaseRunner, store *queryset.Store) error {
	for _, schema := range store.Schemas() {
		records, err := selectRecords(ctx, db, schema, []QueryMod{Asc(schema.PK)})
		if err != nil {
			return fmt.Errorf("load %s: %w", schema.Name, err)
		}
		for _, rec := range records {
			if _, err := store.Insert(schema.Name, rec); err != nil {
				return fmt.Errorf("load %s: %w", schema.Name, err)
			}
		}
	}

	for _, join := range store.JoinTables() {
		rows, err := squirrel.StatementBuilder.RunWith(db).
			Select(join.Columns[0], join.Columns[1]).
			From(join.Name).
			QueryContext(ctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", join.Name, err)
		}
		if err := loadPairs(store, join.Name, rows); err != nil {
			return fmt.Errorf("load %s: %w", join.Name, err)
		}
	}

	return nil
}

func loadPairs(store *queryset.Store, table string, rows *sql.Rows) error {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Default().Error("loadPairs: failed to close rows", "table", table, "error", err.Error())
		}
	}()

	for rows.Next() {
		var pair queryset.JoinPair
		if err := rows.Scan(&pair.Left, &pair.Right); err != nil {
			return err
		}
		if err := store.AddPair(table, pair); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Select runs the predicates of opts in SQL and returns the matching rows
// of collection, ordered like the in-memory sort with the primary key as
// the final tie-breaker.
func Select(ctx context.Context, db squirrel.BaseRunner, store *queryset.Store, collection string, opts Options) ([]queryset.Record, error) {
	schema, err := store.Schema(collection)
	if err != nil {
		return nil, err
	}

	mods, err := whereMods(store, collection, opts.Where)
	if err != nil {
		return nil, err
	}

	for _, key := range opts.OrderBy {
		name, descending := strings.CutPrefix(key, "-")
		path, err := store.Resolve(collection, name)
		if err != nil {
			return nil, err
		}
		if len(path.Hops) > 0 || path.Transform != "" {
			return nil, fmt.Errorf("%w: ordering by %s", ErrUnsupported, key)
		}
		if descending {
			mods = append(mods, Desc(path.Field.Name))
		} else {
			mods = append(mods, Asc(path.Field.Name))
		}
	}
	mods = append(mods, Asc(schema.PK), Page(opts.Offset, opts.Limit))

	return selectRecords(ctx, db, schema, mods)
}

// Count runs COUNT(*) over the rows of collection matching predicates.
func Count(ctx context.Context, db squirrel.BaseRunner, store *queryset.Store, collection string, predicates queryset.Predicates) (int, error) {
	if _, err := store.Schema(collection); err != nil {
		return 0, err
	}
	mods, err := whereMods(store, collection, predicates)
	if err != nil {
		return 0, err
	}

	q := squirrel.StatementBuilder.RunWith(db).Select("COUNT(*)").From(collection)
	q = applyMods(q, collection, mods)

	var n int
	if err := q.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func whereMods(store *queryset.Store, collection string, predicates queryset.Predicates) ([]QueryMod, error) {
	if len(predicates) == 0 {
		return nil, nil
	}
	cond, err := Translate(store, collection, predicates)
	if err != nil {
		return nil, err
	}
	return []QueryMod{Where(cond)}, nil
}

func selectRecords(ctx context.Context, db squirrel.BaseRunner, schema *queryset.Schema, mods []QueryMod) ([]queryset.Record, error) {
	q := squirrel.StatementBuilder.RunWith(db).Select().From(schema.Name)

	var scans []RowScan
	for _, name := range schema.Columns() {
		q = Col(name)(q, schema.Name)
		scans = append(scans, scanField(schema.Fields[name]))
	}
	q = applyMods(q, schema.Name, mods)

	return collect(ctx, q, flattenRowScan(scans))
}

// CreateTables creates a table per schema and join table of store.
func CreateTables(ctx context.Context, db squirrel.BaseRunner, store *queryset.Store) error {
	statements := lo.Map(store.Schemas(), func(schema *queryset.Schema, _ int) string { return DDL(schema) })
	for _, join := range store.JoinTables() {
		statements = append(statements, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s INTEGER NOT NULL, %s INTEGER NOT NULL, PRIMARY KEY (%s, %s))",
			join.Name, join.Columns[0], join.Columns[1], join.Columns[0], join.Columns[1],
		))
	}

	for _, stmt := range statements {
		if err := execContext(ctx, db, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func execContext(ctx context.Context, db squirrel.BaseRunner, stmt string) error {
	if runner, ok := db.(squirrel.ExecerContext); ok {
		_, err := runner.ExecContext(ctx, stmt)
		return err
	}
	_, err := db.Exec(stmt)
	return err
}

// DDL is the CREATE TABLE statement of a schema.
func DDL(schema *queryset.Schema) string {
	columns := lo.Map(schema.Columns(), func(name string, _ int) string {
		field := schema.Fields[name]
		col := name + " " + sqlType(field.Kind)
		if name == schema.PK {
			return col + " PRIMARY KEY"
		}
		if !field.Nullable {
			col += " NOT NULL"
		}
		return col
	})
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", schema.Name, strings.Join(columns, ", "))
}

func sqlType(kind queryset.Kind) string {
	switch kind {
	case queryset.KindInt, queryset.KindRef:
		return "INTEGER"
	case queryset.KindFloat:
		return "REAL"
	case queryset.KindDate:
		return "DATE"
	case queryset.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// Save writes every record and join table row of store, replacing rows
// with the same primary key.
func Save(ctx context.Context, db squirrel.BaseRunner, store *queryset.Store) error {
	sq := squirrel.StatementBuilder.RunWith(db)

	for _, schema := range store.Schemas() {
		set, err := store.All(schema.Name)
		if err != nil {
			return err
		}
		if set.Len() == 0 {
			continue
		}

		columns := schema.Columns()
		insert := sq.Insert(schema.Name).Options("OR REPLACE").Columns(columns...)
		for _, rec := range set.Records() {
			insert = insert.Values(lo.Map(columns, func(name string, _ int) any { return rec[name] })...)
		}
		if _, err := insert.ExecContext(ctx); err != nil {
			return fmt.Errorf("save %s: %w", schema.Name, err)
		}
	}

	for _, join := range store.JoinTables() {
		pairs, err := store.Pairs(join.Name)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			continue
		}

		insert := sq.Insert(join.Name).Options("OR REPLACE").Columns(join.Columns[0], join.Columns[1])
		for _, pair := range pairs {
			insert = insert.Values(pair.Left, pair.Right)
		}
		if _, err := insert.ExecContext(ctx); err != nil {
			return fmt.Errorf("save %s: %w", join.Name, err)
		}
	}

	return nil
}
