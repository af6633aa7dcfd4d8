package cmd

import (
	"fmt"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newValidateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [target]",
		Short: "Check that every record of the target is a JSON object",
		Long: `Read the whole target and report the first record which is not a JSON object.

Examples:
  jsldal validate cities.jsonl
  jsldal validate -b sqlite -a table=docs cities.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, o, args)
		},
	}
}

func runValidate(cmd *cobra.Command, o *options, args []string) error {
	target, _ := splitTarget(args)
	cfg, err := o.prepare(cmd, target)
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cur := db.Select(query.Empty)
	defer cur.Close()
	n := 0
	for cur.Next(cmd.Context()) {
		n++
	}

	out := cmd.OutOrStdout()
	if err := cur.Err(); err != nil {
		var de *database.DecodeError
		if errors.As(err, &de) {
			fmt.Fprintf(out, "❌ Validation failed at record %d: %v\n", de.Position, de.Err)
		} else {
			fmt.Fprintf(out, "❌ Validation failed: %v\n", err)
		}
		return err
	}

	fmt.Fprintf(out, "✅ Valid %s target with %s record(s)\n", cfg.Backend, humanize.Comma(int64(n)))
	return nil
}
