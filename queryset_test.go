package queryset_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pollex.nl/queryset"
	"pollex.nl/queryset/library"
)

func bookshop(t testing.TB) *queryset.Store {
	store := library.NewStore()
	require.NoError(t, library.Seed(store, library.DefaultFixture()))
	return store
}

func all(t testing.TB, store *queryset.Store, collection string) queryset.Set {
	set, err := store.All(collection)
	require.NoError(t, err)
	return set
}

func titles(set queryset.Set) []string {
	return library.Labels(set)
}

var priceSchema = queryset.New("items").
	AddNullableField("price", queryset.KindInt).
	AddNullableField("name", queryset.KindString)

func prices(t testing.TB, records ...queryset.Record) queryset.Set {
	set, err := queryset.NewSet(priceSchema, records)
	require.NoError(t, err)
	return set
}
