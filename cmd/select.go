package cmd

import (
	"log/slog"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSelectCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "select [target] [where]",
		Short: "Print the records matching a where clause",
		Long: `Print the records of the target whose fields match every condition of the
where clause, in storage order. Without a where clause every record is printed.
Pass an empty target ("") to use the one of the config file.

Examples:
  jsldal select cities.jsonl 'city = "Roma"'
  jsldal select cities.jsonl --limit 10 --format json --pretty
  jsldal select -c jsldal.yaml "" 'pop = 3'`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, o, args, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many records (0 for all)")
	return cmd
}

func runSelect(cmd *cobra.Command, o *options, args []string, limit int) error {
	target, rest := splitTarget(args)
	cfg, err := o.prepare(cmd, target)
	if err != nil {
		return err
	}

	var where string
	if len(rest) > 0 {
		where = rest[0]
	}
	q, err := query.Parse(where)
	if err != nil {
		return errors.Wrap(err, "failed to parse where clause")
	}

	db, err := openDatabase(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := parser.NewWriter(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Pretty)
	if err != nil {
		return err
	}
	n, err := writeSelection(cmd, db, q, w, limit)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	slog.Debug("select done", "query", q.String(), "records", n)
	return err
}

// writeSelection writes the records of q to w. A positive limit stops the scan
// early, the cursor is closed either way.
func writeSelection(cmd *cobra.Command, db database.Database, q query.Query, w *parser.Writer, limit int) (int, error) {
	for rec, err := range database.Records(cmd.Context(), db.Select(q)) {
		if err != nil {
			return w.Count(), err
		}
		if err := w.Write(rec); err != nil {
			return w.Count(), err
		}
		if limit > 0 && w.Count() >= limit {
			break
		}
	}
	return w.Count(), nil
}
