package validate

import (
	"context"
	"runtime"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"golang.org/x/sync/errgroup"
)

// Row runs field checks followed by business rules for one row.
func Row(entity schema.EntityType, row schema.Row, specs []schema.FieldSpec) []Issue {
	issues := Fields(row, specs)
	return append(issues, Business(entity, row, issues)...)
}

// Rows validates every row independently across at most workers goroutines.
// The result is indexed like rows, so callers see issues in row order no
// matter which goroutine finished first. workers <= 0 uses GOMAXPROCS.
func Rows(ctx context.Context, entity schema.EntityType, rows []schema.Row, workers int) ([][]Issue, error) {
	specs, err := schema.FieldsFor(entity)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([][]Issue, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Row(entity, rows[i], specs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
