package queryset_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pollex.nl/queryset"
	"pollex.nl/queryset/library"
)

func followersOf(t testing.TB, store *queryset.Store, author queryset.ID) []string {
	set, err := store.Query(library.Users).
		Filter(queryset.Predicates{"followed_authors.pk": queryset.Exact(author)}).
		Set()
	require.NoError(t, err)
	return titles(set)
}

func TestStoreInsert(t *testing.T) {
	store := bookshop(t)

	author := queryset.Record{
		"firstname":        "Nina",
		"lastname":         "Stone",
		"joindate":         "2022-02-02",
		"popularity_score": uint8(6),
	}

	t.Run("assigns the next id and normalizes", func(t *testing.T) {
		rec, err := store.Insert(library.Authors, author)
		require.NoError(t, err)

		assert.Equal(t, int64(7), rec["id"])
		assert.Equal(t, int64(6), rec["popularity_score"])
		assert.Equal(t, time.Date(2022, time.February, 2, 0, 0, 0, 0, time.UTC), rec["joindate"])
		assert.Contains(t, rec, "telephone")
		assert.Nil(t, rec["telephone"])

		stored, err := store.Get(library.Authors, 7)
		require.NoError(t, err)
		assert.Equal(t, rec, stored)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name       string
			collection string
			rec        queryset.Record
			err        error
		}{
			{"duplicate id", library.Users, queryset.Record{"id": 1, "username": "x", "email": "x"}, queryset.ErrDuplicateID},
			{"unknown field", library.Users, queryset.Record{"username": "x", "email": "x", "age": 3}, queryset.ErrNoSuchField},
			{"wrong type", library.Users, queryset.Record{"username": 5, "email": "x"}, queryset.ErrTypeMismatch},
			{"missing required field", library.Users, queryset.Record{"username": "x"}, queryset.ErrNotNullable},
			{"unknown collection", "magazines", queryset.Record{}, queryset.ErrNoSuchCollection},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := store.Insert(tt.collection, tt.rec)
				require.ErrorIs(t, err, tt.err)
			})
		}
	})

	t.Run("missing record", func(t *testing.T) {
		_, err := store.Get(library.Books, 404)
		require.ErrorIs(t, err, queryset.ErrNoSuchRecord)
	})
}

func TestStoreReturnsCopies(t *testing.T) {
	store := bookshop(t)

	t.Run("insert", func(t *testing.T) {
		rec, err := store.Insert(library.Users, queryset.Record{"username": "lurker", "email": "lurker@example.com"})
		require.NoError(t, err)
		rec["username"] = "changed"

		stored, err := store.Get(library.Users, rec["id"].(queryset.ID))
		require.NoError(t, err)
		assert.Equal(t, "lurker", stored["username"])
	})

	t.Run("get", func(t *testing.T) {
		books := store.Query(library.Books).Filter(queryset.Predicates{"author.pk": queryset.Exact(3)})
		set, err := books.Set()
		require.NoError(t, err)
		require.Equal(t, 1, set.Len())

		rec, err := store.Get(library.Books, set.IDs()[0])
		require.NoError(t, err)
		rec["author_id"] = queryset.ID(99)
		rec["title"] = "changed"

		again, err := store.Get(library.Books, set.IDs()[0])
		require.NoError(t, err)
		assert.Equal(t, queryset.ID(3), again["author_id"])
		assert.Equal(t, []string{again["title"].(string)}, titles(set))

		n, err := books.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStoreReverseIndex(t *testing.T) {
	store := bookshop(t)

	_, err := store.Insert(library.Books, queryset.Record{
		"title":          "Second Sight",
		"genre":          "drama",
		"published_date": "2022-05-05",
		"author_id":      3,
		"publisher_id":   3,
	})
	require.NoError(t, err)

	set, err := store.Query(library.Authors).
		Filter(queryset.Predicates{"books.genre": queryset.Exact("drama")}).
		Set()
	require.NoError(t, err)
	assert.Equal(t, []string{"Maria Lopez", "James Carter"}, titles(set))

	n, err := store.Query(library.Books).Filter(queryset.Predicates{"author.pk": queryset.Exact(3)}).Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreLinks(t *testing.T) {
	t.Run("link", func(t *testing.T) {
		store := bookshop(t)
		require.NoError(t, store.Link(library.Authors, "followers", 1, 3))
		assert.Equal(t, []string{"reader", "booklover", "critic"}, followersOf(t, store, 1))
	})

	t.Run("link from the other side", func(t *testing.T) {
		store := bookshop(t)
		require.NoError(t, store.Link(library.Users, "followed_authors", 2, 5))
		assert.Equal(t, []string{"booklover"}, followersOf(t, store, 5))

		pairs, err := store.Pairs(library.AuthorFollowers)
		require.NoError(t, err)
		assert.Contains(t, pairs, queryset.JoinPair{Left: 5, Right: 2})
	})

	t.Run("duplicate link is ignored", func(t *testing.T) {
		store := bookshop(t)
		require.NoError(t, store.Link(library.Authors, "followers", 1, 1))

		pairs, err := store.Pairs(library.AuthorFollowers)
		require.NoError(t, err)
		assert.Len(t, pairs, len(library.DefaultFixture().Followers))
	})

	t.Run("unlink", func(t *testing.T) {
		store := bookshop(t)
		require.NoError(t, store.Unlink(library.Authors, "followers", 4, 3))
		assert.Equal(t, []string{"booklover"}, followersOf(t, store, 4))
	})

	t.Run("set links", func(t *testing.T) {
		store := bookshop(t)
		require.NoError(t, store.SetLinks(library.Authors, "followers", 1, 3, 3))
		assert.Equal(t, []string{"critic"}, followersOf(t, store, 1))
		assert.Equal(t, []string{"reader"}, followersOf(t, store, 2))

		require.NoError(t, store.SetLinks(library.Authors, "followers", 1))
		assert.Empty(t, followersOf(t, store, 1))
	})

	t.Run("errors", func(t *testing.T) {
		store := bookshop(t)

		err := store.Link(library.Authors, "followers", 1, 42)
		require.ErrorIs(t, err, queryset.ErrNoSuchRecord)

		err = store.Link(library.Authors, "books", 1, 1)
		require.ErrorIs(t, err, queryset.ErrNoSuchField)

		err = store.SetLinks(library.Authors, "followers", 99, 1)
		require.ErrorIs(t, err, queryset.ErrNoSuchRecord)

		before, err := store.Pairs(library.AuthorFollowers)
		require.NoError(t, err)
		err = store.SetLinks(library.Authors, "followers", 1, 3, 42)
		require.ErrorIs(t, err, queryset.ErrNoSuchRecord)
		after, err := store.Pairs(library.AuthorFollowers)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		_, err = store.Pairs("authors_books")
		require.ErrorIs(t, err, queryset.ErrNoSuchCollection)
	})
}

func TestStoreConcurrentWriters(t *testing.T) {
	store := bookshop(t)

	var wg sync.WaitGroup
	for author := queryset.ID(1); author <= 6; author++ {
		author := author
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Unlink(library.Authors, "followers", author, 2))
			assert.NoError(t, store.SetLinks(library.Authors, "followers", author, 1, 2, 3))
		}()
		go func() {
			defer wg.Done()
			_, err := store.Insert(library.Users, queryset.Record{"username": "guest", "email": "guest@example.com"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for author := queryset.ID(1); author <= 6; author++ {
		assert.Equal(t, []string{"reader", "booklover", "critic"}, followersOf(t, store, author))
	}

	users, err := store.Query(library.Users).Count()
	require.NoError(t, err)
	assert.Equal(t, 9, users)
}

func TestStoreClone(t *testing.T) {
	store := bookshop(t)
	clone := store.Clone()

	require.NoError(t, clone.Link(library.Authors, "followers", 3, 1))
	_, err := clone.Insert(library.Users, queryset.Record{"username": "newbie", "email": "newbie@example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{"reader"}, followersOf(t, clone, 3))
	assert.Empty(t, followersOf(t, store, 3))

	users, err := store.Query(library.Users).Count()
	require.NoError(t, err)
	assert.Equal(t, 3, users)

	books, err := clone.Query(library.Books).Filter(queryset.Predicates{"author.lastname": queryset.Exact("Hall")}).Count()
	require.NoError(t, err)
	assert.Equal(t, 2, books)
}

func TestStoreBind(t *testing.T) {
	store := bookshop(t)

	set, err := store.Bind(library.Authors, []queryset.Record{{"id": 3}, {"id": int32(1)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"James Carter", "Aaron Hall"}, titles(set))

	// bound records reach their relations
	names, err := queryset.Flat(set, "books.title")
	require.NoError(t, err)
	assert.Equal(t, []any{"Bottled Title", "Harry and the Hollow"}, names)

	_, err = store.Bind(library.Authors, []queryset.Record{{"id": 77}})
	require.ErrorIs(t, err, queryset.ErrNoSuchRecord)

	_, err = store.Bind(library.Authors, []queryset.Record{{"firstname": "Aaron"}})
	require.ErrorIs(t, err, queryset.ErrNoSuchRecord)
}

func TestSchemas(t *testing.T) {
	store := bookshop(t)

	names := make([]string, 0, 4)
	for _, schema := range store.Schemas() {
		names = append(names, schema.Name)
	}
	assert.Equal(t, []string{"authors", "books", "publishers", "users"}, names)

	assert.Equal(t, []queryset.JoinTable{{Name: library.AuthorFollowers, Columns: [2]string{"author_id", "user_id"}}}, store.JoinTables())

	path, err := store.Resolve(library.Books, "author.recommendedby.joindate.year")
	require.NoError(t, err)
	assert.Len(t, path.Hops, 2)
	assert.Equal(t, queryset.PartYear, path.Transform)
	assert.Equal(t, queryset.KindInt, path.Kind())
	assert.False(t, path.Many)
}
