package sqlstore

import (
	"context"
	"log/slog"

	"pollex.nl/queryset"
)

func collect(ctx context.Context, q Q, scans RowScan) ([]queryset.Record, error) {
	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Default().Error("collect: failed to close rows", "error", err.Error())
		}
	}()

	var collection []queryset.Record
	for rows.Next() {
		rec := queryset.Record{}
		pointers, actions := scans(rec)
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		actions()
		collection = append(collection, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return collection, nil
}
