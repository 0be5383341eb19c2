// Package practice holds the catalogue of bookshop query exercises.
package practice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"pollex.nl/queryset"
	"pollex.nl/queryset/library"
	"pollex.nl/queryset/sqlstore"
)

// Env is what an exercise runs against. When DB is set, plain filters are
// run as SQL and bound back onto Store.
type Env struct {
	Store *queryset.Store
	DB    squirrel.BaseRunner
}

type Exercise struct {
	ID    int
	Title string
	Run   func(ctx context.Context, env Env) (any, error)
}

// Lookup finds an exercise by id.
func Lookup(id int) (Exercise, bool) {
	return lo.Find(Catalog(), func(ex Exercise) bool { return ex.ID == id })
}

// Select resolves ids to exercises, or returns the whole catalogue when ids is empty.
func Select(ids ...int) ([]Exercise, error) {
	if len(ids) == 0 {
		return Catalog(), nil
	}

	exercises := make([]Exercise, 0, len(ids))
	for _, id := range ids {
		ex, ok := Lookup(id)
		if !ok {
			return nil, fmt.Errorf("no exercise %d", id)
		}
		exercises = append(exercises, ex)
	}
	return exercises, nil
}

// Result is the outcome of one exercise.
type Result struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Value any    `json:"result,omitempty"`
	Error string `json:"error,omitempty"`
}

func run(ctx context.Context, env Env, ex Exercise) Result {
	value, err := ex.Run(ctx, env)
	if err != nil {
		slog.Error("exercise failed", "id", ex.ID, "error", err)
		return Result{ID: ex.ID, Title: ex.Title, Error: err.Error()}
	}
	return Result{ID: ex.ID, Title: ex.Title, Value: value}
}

// RunAll runs exercises on a pool of workers and returns the results in the
// order of exercises. With one worker or less they run one after another.
func RunAll(ctx context.Context, env Env, exercises []Exercise, workers int) ([]Result, error) {
	results := make([]Result, len(exercises))
	if workers <= 1 {
		for i, ex := range exercises {
			results[i] = run(ctx, env, ex)
		}
		return results, nil
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		slog.Error("exercise panicked", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, ex := range exercises {
		i, ex := i, ex
		results[i] = Result{ID: ex.ID, Title: ex.Title, Error: "exercise panicked"}

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = run(ctx, env, ex)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	return results, nil
}

func (env Env) filter(ctx context.Context, collection string, opts sqlstore.Options) (queryset.Set, error) {
	if env.DB != nil {
		records, err := sqlstore.Select(ctx, env.DB, env.Store, collection, opts)
		if err != nil {
			return queryset.Set{}, err
		}
		return env.Store.Bind(collection, records)
	}

	return env.Store.Query(collection).
		Filter(opts.Where).
		OrderBy(opts.OrderBy...).
		Slice(opts.Offset, opts.Limit).
		Set()
}

func (env Env) count(ctx context.Context, collection string, where queryset.Predicates) (int, error) {
	if env.DB != nil {
		return sqlstore.Count(ctx, env.DB, env.Store, collection, where)
	}
	return env.Store.Query(collection).Filter(where).Count()
}

func (env Env) labels(ctx context.Context, collection string, where queryset.Predicates) ([]string, error) {
	set, err := env.filter(ctx, collection, sqlstore.Options{Where: where})
	if err != nil {
		return nil, err
	}
	return library.Labels(set), nil
}

func labelsOf(set queryset.Set, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	return library.Labels(set), nil
}

// followers lists the usernames following an author.
func followers(store *queryset.Store, author queryset.ID) ([]string, error) {
	return labelsOf(store.Query(library.Users).
		Filter(queryset.Predicates{"followed_authors.pk": queryset.Exact(author)}).
		Set())
}

// Catalog returns every exercise ordered by id.
func Catalog() []Exercise {
	exercises := []Exercise{
		{1, "All authors", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, nil)
		}},
		{2, "Title and genre of every book", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Books).Values("title", "genre")
		}},
		{3, "Books with 'arr' in the title", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Books, queryset.Predicates{"title": queryset.IContains("arr")})
		}},
		{4, "Books with 'arr' in the title and a genre starting with 'a'", func(ctx context.Context, env Env) (any, error) {
			set, err := env.filter(ctx, library.Books, sqlstore.Options{Where: queryset.Predicates{
				"title": queryset.IContains("arr"),
				"genre": queryset.IStartsWith("a"),
			}})
			if err != nil {
				return nil, err
			}
			return queryset.Values(set, "title", "genre")
		}},
		{6, "Authors with primary keys 1 to 4", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"pk": queryset.In(1, 2, 3, 4)})
		}},
		{7, "Authors who joined after 2000-10-10", func(ctx context.Context, env Env) (any, error) {
			set, err := env.filter(ctx, library.Authors, sqlstore.Options{Where: queryset.Predicates{
				"joindate": queryset.Gt("2000-10-10"),
			}})
			if err != nil {
				return nil, err
			}
			return queryset.Values(set, "firstname", "joindate")
		}},
		{8, "Distinct publisher last names", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Publishers).Distinct("lastname")
		}},
		{9, "Latest and earliest joined publisher", func(ctx context.Context, env Env) (any, error) {
			q := env.Store.Query(library.Publishers).OrderBy("-joindate")
			latest, err := q.First()
			if err != nil {
				return nil, err
			}
			earliest, err := q.Last()
			if err != nil {
				return nil, err
			}
			return []string{library.Label(library.Publishers, latest), library.Label(library.Publishers, earliest)}, nil
		}},
		{10, "Name and join date of the most recently joined publisher", func(ctx context.Context, env Env) (any, error) {
			rows, err := env.Store.Query(library.Publishers).OrderBy("-joindate").Limit(1).Values("firstname", "lastname", "joindate")
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return nil, queryset.ErrNoSuchRecord
			}
			return rows[0], nil
		}},
		{11, "Authors who joined after 2013", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"joindate.year": queryset.Gt(2013)})
		}},
		{12, "Total price of books by authors with a popularity score of at least 5", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Books).
				Filter(queryset.Predicates{"author.popularity_score": queryset.Gte(5)}).
				Aggregate("price", queryset.Sum)
		}},
		{13, "Titles of books by authors with an 'a' in their first name", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Books, queryset.Predicates{"author.firstname": queryset.IContains("a")})
		}},
		{14, "Average book price of authors 1 to 3", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Books).
				Filter(queryset.Predicates{"author.pk": queryset.In(1, 2, 3)}).
				Aggregate("price", queryset.Avg)
		}},
		{15, "Authors with the first name of who recommended them", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Authors).Values("firstname", "recommendedby.firstname")
		}},
		{16, "Authors published by publisher 1", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"books.publisher.pk": queryset.Exact(1)})
		}},
		{17, "Add a follower to an author", func(ctx context.Context, env Env) (any, error) {
			store := env.Store.Clone()
			if err := store.Link(library.Authors, "followers", 1, 3); err != nil {
				return nil, err
			}
			return followers(store, 1)
		}},
		{18, "Set the followers of an author", func(ctx context.Context, env Env) (any, error) {
			store := env.Store.Clone()
			if err := store.SetLinks(library.Authors, "followers", 3, 1); err != nil {
				return nil, err
			}
			return followers(store, 3)
		}},
		{20, "Remove a follower from an author", func(ctx context.Context, env Env) (any, error) {
			store := env.Store.Clone()
			if err := store.Unlink(library.Authors, "followers", 4, 3); err != nil {
				return nil, err
			}
			return followers(store, 4)
		}},
		{21, "First names of authors followed by user 1", func(ctx context.Context, env Env) (any, error) {
			set, err := env.filter(ctx, library.Authors, sqlstore.Options{Where: queryset.Predicates{
				"followers.pk": queryset.Exact(1),
			}})
			if err != nil {
				return nil, err
			}
			return queryset.Flat(set, "firstname")
		}},
		{22, "Authors with a book title containing 'tle'", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"books.title": queryset.IContains("tle")})
		}},
		{23, "Authors starting with 'a' and popular, or joined after 2014", func(ctx context.Context, env Env) (any, error) {
			return labelsOf(env.Store.Query(library.Authors).FilterAny(
				queryset.Predicates{"firstname": queryset.IStartsWith("a"), "popularity_score": queryset.Gt(5)},
				queryset.Predicates{"joindate.year": queryset.Gt(2014)},
			).Set())
		}},
		{24, "Author with primary key 1", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"pk": queryset.Exact(1)})
		}},
		{25, "First 10 authors", func(ctx context.Context, env Env) (any, error) {
			return labelsOf(env.filter(ctx, library.Authors, sqlstore.Options{Limit: 10}))
		}},
		{26, "First and last author with a popularity score of 7", func(ctx context.Context, env Env) (any, error) {
			q := env.Store.Query(library.Authors).Filter(queryset.Predicates{"popularity_score": queryset.Exact(7)})
			first, err := q.First()
			if err != nil {
				return nil, err
			}
			last, err := q.Last()
			if err != nil {
				return nil, err
			}
			return []string{library.Label(library.Authors, first), library.Label(library.Authors, last)}, nil
		}},
		{27, "Authors joined on or after the 12th in 2012 or later, popular, starting with 'a'", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{
				"joindate.year":    queryset.Gte(2012),
				"joindate.day":     queryset.Gte(12),
				"popularity_score": queryset.Gte(4),
				"firstname":        queryset.IStartsWith("a"),
			})
		}},
		{28, "Authors who did not join in 2012", func(ctx context.Context, env Env) (any, error) {
			return labelsOf(env.Store.Query(library.Authors).
				Exclude(queryset.Predicates{"joindate.year": queryset.Exact(2012)}).
				Set())
		}},
		{29, "Join date range, average popularity and total book price", func(ctx context.Context, env Env) (any, error) {
			authors := env.Store.Query(library.Authors)
			oldest, err := authors.Aggregate("joindate", queryset.Min)
			if err != nil {
				return nil, err
			}
			newest, err := authors.Aggregate("joindate", queryset.Max)
			if err != nil {
				return nil, err
			}
			popularity, err := authors.Aggregate("popularity_score", queryset.Avg)
			if err != nil {
				return nil, err
			}
			total, err := env.Store.Query(library.Books).Aggregate("price", queryset.Sum)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"oldest_joindate": oldest,
				"newest_joindate": newest,
				"avg_popularity":  popularity,
				"total_price":     total,
			}, nil
		}},
		{30, "Authors nobody recommended", func(ctx context.Context, env Env) (any, error) {
			return env.labels(ctx, library.Authors, queryset.Predicates{"recommendedby": queryset.IsNull(true)})
		}},
		{31, "Books with an author, and books whose author nobody recommended", func(ctx context.Context, env Env) (any, error) {
			withAuthor, err := env.count(ctx, library.Books, queryset.Predicates{"author": queryset.IsNull(false)})
			if err != nil {
				return nil, err
			}
			unrecommended, err := env.labels(ctx, library.Books, queryset.Predicates{"author.recommendedby": queryset.IsNull(true)})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"with_author":            withAuthor,
				"author_not_recommended": unrecommended,
			}, nil
		}},
		{32, "Total price of the books of author 1", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Books).
				Filter(queryset.Predicates{"author.pk": queryset.Exact(1)}).
				Aggregate("price", queryset.Sum)
		}},
		{33, "Title of the most recently published book", func(ctx context.Context, env Env) (any, error) {
			book, err := env.Store.Query(library.Books).OrderBy("-published_date").First()
			if err != nil {
				return nil, err
			}
			return book["title"], nil
		}},
		{34, "Average price of all books", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Books).Aggregate("price", queryset.Avg)
		}},
		{35, "Highest popularity of publishers of author 1", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Publishers).
				Filter(queryset.Predicates{"books.author.pk": queryset.Exact(1)}).
				Aggregate("popularity_score", queryset.Max)
		}},
		{36, "Number of authors with 'ab' in a book title", func(ctx context.Context, env Env) (any, error) {
			return env.count(ctx, library.Authors, queryset.Predicates{"books.title": queryset.IContains("ab")})
		}},
		{37, "Authors with at least two followers", func(ctx context.Context, env Env) (any, error) {
			authors, err := env.Store.All(library.Authors)
			if err != nil {
				return nil, err
			}
			var popular []string
			for _, author := range authors.Records() {
				n, err := env.Store.Query(library.Users).
					Filter(queryset.Predicates{"followed_authors.pk": queryset.Exact(author["id"])}).
					Count()
				if err != nil {
					return nil, err
				}
				if n >= 2 {
					popular = append(popular, library.Label(library.Authors, author))
				}
			}
			return popular, nil
		}},
		{38, "Average popularity of authors who joined after 2014-09-20", func(ctx context.Context, env Env) (any, error) {
			return env.Store.Query(library.Authors).
				Filter(queryset.Predicates{"joindate": queryset.Gt("2014-09-20")}).
				Aggregate("popularity_score", queryset.Avg)
		}},
		{39, "Books by authors with more than one book", func(ctx context.Context, env Env) (any, error) {
			groups, err := env.Store.Query(library.Books).GroupBy("author_id", "id", queryset.Count)
			if err != nil {
				return nil, err
			}
			prolific := lo.FilterMap(groups, func(g queryset.Group, _ int) (any, bool) { return g.Key, g.Count > 1 })
			return env.labels(ctx, library.Books, queryset.Predicates{"author_id": queryset.In(prolific...)})
		}},
		{40, "Genres with more than one title", func(ctx context.Context, env Env) (any, error) {
			groups, err := env.Store.Query(library.Books).GroupBy("genre", "id", queryset.Count)
			if err != nil {
				return nil, err
			}
			return lo.FilterMap(groups, func(g queryset.Group, _ int) (string, bool) {
				return fmt.Sprintf("%v: %d", g.Key, g.Count), g.Count > 1
			}), nil
		}},
	}

	slices.SortFunc(exercises, func(a, b Exercise) int { return a.ID - b.ID })
	return exercises
}
