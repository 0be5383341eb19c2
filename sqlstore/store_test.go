package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pollex.nl/queryset"
	"pollex.nl/queryset/library"
	"pollex.nl/queryset/sqlstore"
)

func setupDB(t testing.TB) *sql.DB {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	// every connection would open its own in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, library.SeedDB(context.Background(), db, library.DefaultFixture()))
	return db
}

func seeded(t testing.TB) *queryset.Store {
	store := library.NewStore()
	require.NoError(t, library.Seed(store, library.DefaultFixture()))
	return store
}

// dateless turns dates into strings so rows read back from SQLite compare
// equal regardless of time.Location.
func dateless(rows [][]any) [][]any {
	for _, row := range rows {
		for i, v := range row {
			if d, ok := v.(time.Time); ok {
				row[i] = d.UTC().Format(queryset.DateLayout)
			}
		}
	}
	return rows
}

func TestLoadRoundTrip(t *testing.T) {
	db := setupDB(t)
	want := seeded(t)

	got, err := library.Open(context.Background(), db)
	require.NoError(t, err)

	for _, schema := range want.Schemas() {
		t.Run(schema.Name, func(t *testing.T) {
			wantRows, err := want.Query(schema.Name).Values()
			require.NoError(t, err)
			gotRows, err := got.Query(schema.Name).Values()
			require.NoError(t, err)

			assert.Equal(t, dateless(wantRows), dateless(gotRows))
		})
	}

	wantPairs, err := want.Pairs(library.AuthorFollowers)
	require.NoError(t, err)
	gotPairs, err := got.Pairs(library.AuthorFollowers)
	require.NoError(t, err)
	assert.ElementsMatch(t, wantPairs, gotPairs)
}

func TestSaveIsRepeatable(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, library.SeedDB(context.Background(), db, library.DefaultFixture()))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM books").Scan(&n))
	assert.Equal(t, 8, n)
}

func TestSelectMatchesMemory(t *testing.T) {
	db := setupDB(t)
	store := seeded(t)
	ctx := context.Background()

	tests := []struct {
		collection string
		predicates queryset.Predicates
	}{
		{library.Books, queryset.Predicates{"title": queryset.IContains("arr")}},
		{library.Books, queryset.Predicates{"title": queryset.Contains("Arr")}},
		{library.Books, queryset.Predicates{"title": queryset.StartsWith("The")}},
		{library.Books, queryset.Predicates{"title": queryset.IContains("arr"), "genre": queryset.IStartsWith("a")}},
		{library.Books, queryset.Predicates{"price": queryset.Lt(25)}},
		{library.Books, queryset.Predicates{"price": queryset.IsNull(true)}},
		{library.Books, queryset.Predicates{"price": queryset.Exact(nil)}},
		{library.Books, queryset.Predicates{"published_date": queryset.Gte("2015-03-10")}},
		{library.Books, queryset.Predicates{"published_date": queryset.Exact("2015-03-10")}},
		{library.Books, queryset.Predicates{"author.popularity_score": queryset.Gte(5)}},
		{library.Books, queryset.Predicates{"author.firstname": queryset.IContains("a")}},
		{library.Books, queryset.Predicates{"author.recommendedby": queryset.IsNull(true)}},
		{library.Books, queryset.Predicates{"author": queryset.IsNull(false)}},
		{library.Authors, queryset.Predicates{"pk": queryset.In(1, 2, 3, 4)}},
		{library.Authors, queryset.Predicates{"joindate": queryset.Gt("2000-10-10")}},
		{library.Authors, queryset.Predicates{"joindate.year": queryset.Gt(2013)}},
		{library.Authors, queryset.Predicates{
			"joindate.year":    queryset.Gte(2012),
			"joindate.day":     queryset.Gte(12),
			"joindate.month":   queryset.Lte(9),
			"popularity_score": queryset.Gte(4),
		}},
		{library.Authors, queryset.Predicates{"recommendedby": queryset.IsNull(true)}},
		{library.Authors, queryset.Predicates{"recommendedby.firstname": queryset.Exact("Aaron")}},
		{library.Authors, queryset.Predicates{"books.title": queryset.IContains("tle")}},
		{library.Authors, queryset.Predicates{"books.publisher.pk": queryset.Exact(1)}},
		{library.Authors, queryset.Predicates{"books.price": queryset.IsNull(true)}},
		{library.Authors, queryset.Predicates{"followers.pk": queryset.Exact(1)}},
		{library.Authors, queryset.Predicates{"followers": queryset.IsNull(true)}},
		{library.Users, queryset.Predicates{"followed_authors.lastname": queryset.In("Hall", "Park")}},
		{library.Publishers, queryset.Predicates{"books.author.pk": queryset.Exact(1)}},
	}

	for _, tt := range tests {
		want, err := store.Query(tt.collection).Filter(tt.predicates).Set()
		require.NoError(t, err)

		records, err := sqlstore.Select(ctx, db, store, tt.collection, sqlstore.Options{Where: tt.predicates})
		require.NoError(t, err)
		got, err := store.Bind(tt.collection, records)
		require.NoError(t, err)

		assert.Equal(t, want.IDs(), got.IDs(), "%s %v", tt.collection, tt.predicates)
	}
}

func TestSelectOptions(t *testing.T) {
	db := setupDB(t)
	store := seeded(t)
	ctx := context.Background()

	t.Run("order and limit", func(t *testing.T) {
		records, err := sqlstore.Select(ctx, db, store, library.Authors, sqlstore.Options{
			OrderBy: []string{"-popularity_score"},
			Limit:   2,
		})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "Maria", records[0]["firstname"])
		assert.Equal(t, "Lena", records[1]["firstname"])
	})

	t.Run("nulls sort first", func(t *testing.T) {
		records, err := sqlstore.Select(ctx, db, store, library.Books, sqlstore.Options{OrderBy: []string{"price"}})
		require.NoError(t, err)

		set, err := store.Bind(library.Books, records)
		require.NoError(t, err)
		want, err := store.Query(library.Books).OrderBy("price").Set()
		require.NoError(t, err)
		assert.Equal(t, want.IDs(), set.IDs())
	})

	t.Run("offset without limit", func(t *testing.T) {
		records, err := sqlstore.Select(ctx, db, store, library.Authors, sqlstore.Options{Offset: 4})
		require.NoError(t, err)

		set, err := store.Bind(library.Authors, records)
		require.NoError(t, err)
		assert.Equal(t, []queryset.ID{5, 6}, set.IDs())
	})

	t.Run("scans nulls", func(t *testing.T) {
		records, err := sqlstore.Select(ctx, db, store, library.Books, sqlstore.Options{
			Where: queryset.Predicates{"pk": queryset.Exact(3)},
		})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, records[0]["price"])
		assert.Equal(t, "Bottled Title", records[0]["title"])
		assert.Equal(t, int64(3), records[0]["author_id"])
	})

	t.Run("ordering through a relation is unsupported", func(t *testing.T) {
		_, err := sqlstore.Select(ctx, db, store, library.Books, sqlstore.Options{OrderBy: []string{"author.lastname"}})
		require.ErrorIs(t, err, sqlstore.ErrUnsupported)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := sqlstore.Select(ctx, db, store, library.Books, sqlstore.Options{OrderBy: []string{"rating"}})
		require.ErrorIs(t, err, queryset.ErrNoSuchField)
	})
}

func TestCount(t *testing.T) {
	db := setupDB(t)
	store := seeded(t)
	ctx := context.Background()

	n, err := sqlstore.Count(ctx, db, store, library.Authors, queryset.Predicates{"books.title": queryset.IContains("ab")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = sqlstore.Count(ctx, db, store, library.Books, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = sqlstore.Count(ctx, db, store, "magazines", nil)
	require.ErrorIs(t, err, queryset.ErrNoSuchCollection)
}

func TestCaseFoldingIsASCII(t *testing.T) {
	db := setupDB(t)
	store := seeded(t)
	ctx := context.Background()

	_, err := store.Insert(library.Books, queryset.Record{
		"title":          "Élan Vital",
		"genre":          "drama",
		"published_date": "2021-03-03",
		"author_id":      2,
		"publisher_id":   1,
	})
	require.NoError(t, err)
	require.NoError(t, sqlstore.Save(ctx, db, store))

	tests := []struct {
		name        string
		predicates  queryset.Predicates
		memory, inSQL int
	}{
		{"ascii letters fold", queryset.Predicates{"title": queryset.IStartsWith("ÉLAN")}, 1, 1},
		{"accented letter folds in memory only", queryset.Predicates{"title": queryset.IStartsWith("élan")}, 1, 0},
		{"icontains", queryset.Predicates{"title": queryset.IContains("élan")}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory, err := store.Query(library.Books).Filter(tt.predicates).Count()
			require.NoError(t, err)
			assert.Equal(t, tt.memory, memory)

			n, err := sqlstore.Count(ctx, db, store, library.Books, tt.predicates)
			require.NoError(t, err)
			assert.Equal(t, tt.inSQL, n)
		})
	}
}

func TestDDL(t *testing.T) {
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, username TEXT NOT NULL, email TEXT NOT NULL)",
		sqlstore.DDL(library.UserSchema()),
	)
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS books (id INTEGER PRIMARY KEY, title TEXT NOT NULL, genre TEXT NOT NULL, price INTEGER, published_date DATE NOT NULL, author_id INTEGER NOT NULL, publisher_id INTEGER NOT NULL)",
		sqlstore.DDL(library.BookSchema()),
	)
}
