package cmd

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/bisegni/jsldal/pkg/database"
	"github.com/bisegni/jsldal/pkg/parser"
	"github.com/bisegni/jsldal/pkg/query"
	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newShellCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [target]",
		Short: "Run where clauses against the target interactively",
		Long: `Open the target once and read where clauses from the prompt. Each line
prints the matching records, "count <where>" prints the number of matches.
Type 'exit' or 'quit' to leave.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, o, args)
		},
	}
}

func runShell(cmd *cobra.Command, o *options, args []string) error {
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

	out := cmd.OutOrStdout()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     "", // In-memory history for this session
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(out, "Interactive mode on %s backend. Type 'exit' or 'quit' to leave.\n", cfg.Backend)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "exit") || strings.EqualFold(trimmed, "quit") {
			break
		}

		if err := evalShellLine(cmd, db, cfg, out, trimmed); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}
	return nil
}

// evalShellLine runs one line of the shell against db.
func evalShellLine(cmd *cobra.Command, db database.Database, cfg Config, out io.Writer, line string) error {
	countOnly := false
	if len(line) >= 5 && strings.EqualFold(line[:5], "count") && (len(line) == 5 || unicode.IsSpace(rune(line[5]))) {
		// a field called count is still a where clause
		if rest := strings.TrimSpace(line[5:]); !strings.HasPrefix(rest, "=") {
			countOnly = true
			line = rest
		}
	}

	q, err := query.Parse(line)
	if err != nil {
		return err
	}

	if countOnly {
		res := count(cmd.Context(), db, q)
		if res.err != nil {
			return res.err
		}
		fmt.Fprintf(out, "%s of %s record(s)\n", humanize.Comma(int64(res.matched)), humanize.Comma(int64(res.scanned)))
		return nil
	}

	w, err := parser.NewWriter(out, cfg.Output.Format, cfg.Output.Pretty)
	if err != nil {
		return err
	}
	_, err = writeSelection(cmd, db, q, w, 0)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}
