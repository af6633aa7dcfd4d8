package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:   "jsldal [target] [where]",
		Short: "Query JSON records stored in JSONL files, SQLite tables or memory",
		Long: `jsldal scans records of a storage backend and keeps the ones whose fields
are equal to every condition of the where clause.
If no command is provided, it defaults to select.

A where clause is a list of equality conditions joined by AND:
  city = "Roma" AND pop = 3

Examples:
  jsldal cities.jsonl 'city = "Roma"'
  jsldal select cities.jsonl.gz 'city = "Roma" AND capital = true'
  jsldal count cities.jsonl 'city = "Roma"' 'city = "Milano"'
  jsldal validate cities.jsonl
  jsldal -b sqlite -a table=docs select cities.db 'city = "Roma"'
  jsldal -i cities.jsonl`,
		Args:         cobra.RangeArgs(0, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.interactive {
				return runShell(cmd, o, args)
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runSelect(cmd, o, args, 0)
		},
	}

	o.register(rootCmd)
	rootCmd.Flags().BoolVarP(&o.interactive, "interactive", "i", false, "Interactive REPL mode")

	rootCmd.AddCommand(newSelectCmd(o))
	rootCmd.AddCommand(newCountCmd(o))
	rootCmd.AddCommand(newValidateCmd(o))
	rootCmd.AddCommand(newShellCmd(o))
	return rootCmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// splitTarget returns the target and the remaining arguments.
func splitTarget(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

func openDatabase(cmd *cobra.Command, cfg Config) (database.Database, error) {
	return database.DefaultCatalog().Open(cmd.Context(), cfg.Backend, database.Args(cfg.Args))
}
