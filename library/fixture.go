package library

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"pollex.nl/queryset"
	"pollex.nl/queryset/sqlstore"
)

type Fixture struct {
	Authors    []queryset.Record
	Books      []queryset.Record
	Publishers []queryset.Record
	Users      []queryset.Record
	// Followers pairs an author id with a user id.
	Followers []queryset.JoinPair
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DefaultFixture is a small deterministic bookshop.
func DefaultFixture() Fixture {
	return Fixture{
		Authors: []queryset.Record{
			{"id": 1, "firstname": "Aaron", "lastname": "Hall", "address": "12 Elm St", "zipcode": 10001, "telephone": "555-0101", "joindate": date(2012, time.March, 15), "popularity_score": 7},
			{"id": 2, "firstname": "Maria", "lastname": "Lopez", "address": "4 Oak Ave", "zipcode": 10002, "recommendedby_id": 1, "joindate": date(2014, time.September, 21), "popularity_score": 9},
			{"id": 3, "firstname": "James", "lastname": "Carter", "recommendedby_id": 1, "joindate": date(2010, time.May, 12), "popularity_score": 3},
			{"id": 4, "firstname": "Sarah", "lastname": "Adams", "address": "9 Pine Rd", "zipcode": 10004, "telephone": "555-0104", "joindate": date(2016, time.January, 30), "popularity_score": 5},
			{"id": 5, "firstname": "Tom", "lastname": "Baker", "zipcode": 10005, "recommendedby_id": 2, "joindate": date(2001, time.December, 12), "popularity_score": 4},
			{"id": 6, "firstname": "Lena", "lastname": "Park", "address": "77 Birch Ln", "telephone": "555-0106", "recommendedby_id": 4, "joindate": date(2019, time.July, 4), "popularity_score": 8},
		},
		Publishers: []queryset.Record{
			{"id": 1, "firstname": "Harper", "lastname": "Collins", "joindate": date(2005, time.April, 1), "popularity_score": 6},
			{"id": 2, "firstname": "Penguin", "lastname": "Random", "recommendedby_id": 1, "joindate": date(2011, time.August, 19), "popularity_score": 8},
			{"id": 3, "firstname": "Simon", "lastname": "Collins", "joindate": date(2015, time.February, 10), "popularity_score": 4},
			{"id": 4, "firstname": "Oxford", "lastname": "Press", "recommendedby_id": 2, "joindate": date(1999, time.November, 11), "popularity_score": 5},
		},
		Books: []queryset.Record{
			{"id": 1, "title": "Harry and the Hollow", "genre": "adventure", "price": 25, "published_date": date(2013, time.June, 1), "author_id": 1, "publisher_id": 1},
			{"id": 2, "title": "Arrows of Time", "genre": "adventure", "price": 30, "published_date": date(2015, time.March, 10), "author_id": 2, "publisher_id": 2},
			{"id": 3, "title": "Bottled Title", "genre": "drama", "published_date": date(2012, time.January, 20), "author_id": 3, "publisher_id": 1},
			{"id": 4, "title": "Cooking Abroad", "genre": "cooking", "price": 18, "published_date": date(2017, time.November, 5), "author_id": 4, "publisher_id": 3},
			{"id": 5, "title": "The Narrow Path", "genre": "drama", "price": 22, "published_date": date(2018, time.February, 14), "author_id": 2, "publisher_id": 2},
			{"id": 6, "title": "Abstract Garden", "genre": "art", "price": 40, "published_date": date(2020, time.September, 9), "author_id": 6, "publisher_id": 4},
			{"id": 7, "title": "Old Little Tales", "genre": "adventure", "price": 15, "published_date": date(2003, time.April, 4), "author_id": 5, "publisher_id": 1},
			{"id": 8, "title": "Marrow and Bone", "genre": "horror", "published_date": date(2021, time.October, 31), "author_id": 1, "publisher_id": 2},
		},
		Users: []queryset.Record{
			{"id": 1, "username": "reader", "email": "reader@example.com"},
			{"id": 2, "username": "booklover", "email": "booklover@example.com"},
			{"id": 3, "username": "critic", "email": "critic@example.com"},
		},
		Followers: []queryset.JoinPair{
			{Left: 1, Right: 1},
			{Left: 1, Right: 2},
			{Left: 2, Right: 1},
			{Left: 4, Right: 2},
			{Left: 4, Right: 3},
			{Left: 6, Right: 3},
		},
	}
}

// Seed inserts the fixture into store.
func Seed(store *queryset.Store, fx Fixture) error {
	collections := []struct {
		name    string
		records []queryset.Record
	}{
		{Authors, fx.Authors},
		{Publishers, fx.Publishers},
		{Books, fx.Books},
		{Users, fx.Users},
	}
	for _, c := range collections {
		for _, rec := range c.records {
			if _, err := store.Insert(c.name, rec); err != nil {
				return fmt.Errorf("seed %s: %w", c.name, err)
			}
		}
	}

	for _, pair := range fx.Followers {
		if err := store.Link(Authors, "followers", pair.Left, pair.Right); err != nil {
			return fmt.Errorf("seed %s: %w", AuthorFollowers, err)
		}
	}

	return nil
}

// Migrate creates the bookshop tables.
func Migrate(ctx context.Context, db squirrel.BaseRunner) error {
	return sqlstore.CreateTables(ctx, db, NewStore())
}

// SeedDB creates the bookshop tables and writes the fixture into them.
func SeedDB(ctx context.Context, db squirrel.BaseRunner, fx Fixture) error {
	store := NewStore()
	if err := Seed(store, fx); err != nil {
		return err
	}
	if err := sqlstore.CreateTables(ctx, db, store); err != nil {
		return err
	}
	return sqlstore.Save(ctx, db, store)
}

// Open loads the bookshop from db into a new store.
func Open(ctx context.Context, db squirrel.BaseRunner) (*queryset.Store, error) {
	store := NewStore()
	if err := sqlstore.Load(ctx, db, store); err != nil {
		return nil, err
	}
	return store, nil
}
