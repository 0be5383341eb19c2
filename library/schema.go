// Package library declares the bookshop schema: authors, books, publishers
// and the users following authors.
package library

import (
	"pollex.nl/queryset"
)

const (
	Authors    = "authors"
	Books      = "books"
	Publishers = "publishers"
	Users      = "users"

	// AuthorFollowers joins authors to the users following them.
	AuthorFollowers = "authors_followers"
)

func AuthorSchema() *queryset.Schema {
	return queryset.New(Authors).
		AddField("firstname", queryset.KindString).
		AddField("lastname", queryset.KindString).
		AddNullableField("address", queryset.KindString).
		AddNullableField("zipcode", queryset.KindInt).
		AddNullableField("telephone", queryset.KindString).
		AddNullableField("recommendedby_id", queryset.KindRef).
		AddField("joindate", queryset.KindDate).
		AddField("popularity_score", queryset.KindInt).
		AddRelation("recommendedby", queryset.HasOne(Authors, "recommendedby_id")).
		AddRelation("recommended_authors", queryset.HasMany(Authors, "recommendedby_id")).
		AddRelation("followers", queryset.ManyToMany(Users, AuthorFollowers, "author_id", "user_id")).
		AddRelation("books", queryset.HasMany(Books, "author_id"))
}

func BookSchema() *queryset.Schema {
	return queryset.New(Books).
		AddField("title", queryset.KindString).
		AddField("genre", queryset.KindString).
		AddNullableField("price", queryset.KindInt).
		AddField("published_date", queryset.KindDate).
		AddField("author_id", queryset.KindRef).
		AddField("publisher_id", queryset.KindRef).
		AddRelation("author", queryset.HasOne(Authors, "author_id")).
		AddRelation("publisher", queryset.HasOne(Publishers, "publisher_id"))
}

func PublisherSchema() *queryset.Schema {
	return queryset.New(Publishers).
		AddField("firstname", queryset.KindString).
		AddField("lastname", queryset.KindString).
		AddNullableField("recommendedby_id", queryset.KindRef).
		AddField("joindate", queryset.KindDate).
		AddField("popularity_score", queryset.KindInt).
		AddRelation("recommendedby", queryset.HasOne(Publishers, "recommendedby_id")).
		AddRelation("books", queryset.HasMany(Books, "publisher_id"))
}

func UserSchema() *queryset.Schema {
	return queryset.New(Users).
		AddField("username", queryset.KindString).
		AddField("email", queryset.KindString).
		AddRelation("followed_authors", queryset.ManyToMany(Authors, AuthorFollowers, "user_id", "author_id"))
}

// NewStore returns an empty store with the four bookshop collections.
func NewStore() *queryset.Store {
	return queryset.NewStore(AuthorSchema(), BookSchema(), PublisherSchema(), UserSchema())
}
