package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCountCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count [target] [where...]",
		Short: "Count the records matching one or more where clauses",
		Long: `Count the records matching each where clause. Every clause gets its own
cursor over the same database and the cursors run concurrently, --workers at a time.
Without a where clause all the records are counted.

Examples:
  jsldal count cities.jsonl
  jsldal count cities.jsonl 'city = "Roma"' 'city = "Milano"' --workers 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, o, args)
		},
	}
}

type countResult struct {
	query   query.Query
	matched int
	scanned int
	err     error
}

func runCount(cmd *cobra.Command, o *options, args []string) error {
	target, wheres := splitTarget(args)
	cfg, err := o.prepare(cmd, target)
	if err != nil {
		return err
	}

	queries := []query.Query{query.Empty}
	if len(wheres) > 0 {
		queries = queries[:0]
		for _, w := range wheres {
			q, err := query.Parse(w)
			if err != nil {
				return errors.Wrapf(err, "failed to parse where clause %q", w)
			}
			queries = append(queries, q)
		}
	}

	db, err := openDatabase(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := countAll(cmd.Context(), db, queries, cfg.Workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var firstErr error
	for _, r := range results {
		where := r.query.String()
		if r.query.IsEmpty() {
			where = "*"
		}
		if r.err != nil {
			fmt.Fprintf(out, "%13s %13s  %s: %v\n", "-", humanize.Comma(int64(r.scanned)), where, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		fmt.Fprintf(out, "%13s %13s  %s\n", humanize.Comma(int64(r.matched)), humanize.Comma(int64(r.scanned)), where)
	}
	return firstErr
}

// countAll drives one cursor per query on a pool of workers goroutines. The
// results are in the order of queries.
func countAll(ctx context.Context, db database.Database, queries []query.Query, workers int) ([]countResult, error) {
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		slog.Error("count worker panicked", "panic", v)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}
	defer pool.Release()

	results := make([]countResult, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		results[i] = countResult{query: q, err: errors.New("count did not complete")}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = count(ctx, db, q)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, errors.Wrap(err, "failed to submit count")
		}
	}
	wg.Wait()
	return results, nil
}

func count(ctx context.Context, db database.Database, q query.Query) countResult {
	cur := db.Select(q)
	defer cur.Close()

	res := countResult{query: q}
	for cur.Next(ctx) {
		res.matched++
	}
	res.scanned = cur.Current()
	res.err = cur.Err()
	return res
}
