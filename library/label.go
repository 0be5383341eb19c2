package library

import (
	"fmt"

	"github.com/samber/lo"
	"pollex.nl/queryset"
)

// Label is the display name of a bookshop record.
func Label(collection string, rec queryset.Record) string {
	switch collection {
	case Authors, Publishers:
		return fmt.Sprintf("%v %v", rec["firstname"], rec["lastname"])
	case Books:
		return fmt.Sprint(rec["title"])
	case Users:
		return fmt.Sprint(rec["username"])
	}
	return fmt.Sprintf("%s(%v)", collection, rec["id"])
}

// Labels returns the display names of a set.
func Labels(set queryset.Set) []string {
	return lo.Map(set.Records(), func(rec queryset.Record, _ int) string {
		return Label(set.Schema().Name, rec)
	})
}
