package library_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pollex.nl/queryset"
	"pollex.nl/queryset/library"
)

func TestSeed(t *testing.T) {
	store := library.NewStore()
	fx := library.DefaultFixture()
	require.NoError(t, library.Seed(store, fx))

	counts := map[string]int{
		library.Authors:    len(fx.Authors),
		library.Books:      len(fx.Books),
		library.Publishers: len(fx.Publishers),
		library.Users:      len(fx.Users),
	}
	for collection, want := range counts {
		n, err := store.Query(collection).Count()
		require.NoError(t, err)
		assert.Equal(t, want, n, collection)
	}

	t.Run("twice", func(t *testing.T) {
		err := library.Seed(store, fx)
		require.ErrorIs(t, err, queryset.ErrDuplicateID)
	})

	t.Run("dangling follower", func(t *testing.T) {
		fx := library.DefaultFixture()
		fx.Followers = append(fx.Followers, queryset.JoinPair{Left: 1, Right: 9})

		err := library.Seed(library.NewStore(), fx)
		require.ErrorIs(t, err, queryset.ErrNoSuchRecord)
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	require.NoError(t, library.Migrate(ctx, db))

	store, err := library.Open(ctx, db)
	require.NoError(t, err)
	n, err := store.Query(library.Authors).Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLabel(t *testing.T) {
	store := library.NewStore()
	require.NoError(t, library.Seed(store, library.DefaultFixture()))

	tests := []struct {
		collection string
		id         queryset.ID
		want       string
	}{
		{library.Authors, 2, "Maria Lopez"},
		{library.Publishers, 4, "Oxford Press"},
		{library.Books, 6, "Abstract Garden"},
		{library.Users, 3, "critic"},
	}
	for _, tt := range tests {
		rec, err := store.Get(tt.collection, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, library.Label(tt.collection, rec))
	}

	assert.Equal(t, "magazines(5)", library.Label("magazines", queryset.Record{"id": int64(5)}))
}
