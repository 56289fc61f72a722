package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/automata/internal/query"
	"github.com/roach88/automata/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Show     int64 // generation whose diagnostics to print

	Status    string // cycle status filter
	Key       string // only cycles with an outcome for this key
	KeyStatus string // with Key: only outcomes with this status
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Cycles      []store.CycleSummary `json:"cycles"`
	Diagnostics []string             `json:"diagnostics,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List persisted cycles",
		Long: `List the cycles recorded in a database, newest first, with how many
definitions each one rebuilt, reused, failed or skipped.

Example:
  automata history --db ./automata.db --limit 5
  automata history --db ./automata.db --show 12
  automata history --db ./automata.db --key Lamp --key-status failed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of cycles (0 for all)")
	cmd.Flags().Int64Var(&opts.Show, "show", 0, "print the diagnostics of one generation")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only cycles with this status")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only cycles that recorded this definition")
	cmd.Flags().StringVar(&opts.KeyStatus, "key-status", "", "with --key: rebuilt, reused, failed or skipped")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	filter, err := opts.filter()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCompileError(formatter, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	cycles, err := st.FindCycles(ctx, filter, opts.Limit)
	if err != nil {
		return outputCompileError(formatter, ErrCodeDatabase, err.Error(), nil)
	}

	result := HistoryResult{Cycles: cycles}
	if opts.Show > 0 {
		lines, err := st.ReadDiagnostics(ctx, opts.Show)
		if err != nil {
			return outputCompileError(formatter, ErrCodeDatabase, err.Error(), nil)
		}
		result.Diagnostics = lines
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No cycles recorded.")
	} else {
		fmt.Fprintf(w, "%-10s  %-18s  %7s  %6s  %6s  %7s  %s\n",
			"GENERATION", "STATUS", "REBUILT", "REUSED", "FAILED", "SKIPPED", "SOURCE")
		for _, c := range cycles {
			fmt.Fprintf(w, "%-10d  %-18s  %7d  %6d  %6d  %7d  %s\n",
				c.Generation, c.Status, c.Rebuilt, c.Reused, c.Failed, c.Skipped, shortHash(c.SourceHash))
		}
	}

	if opts.Show > 0 {
		fmt.Fprintf(w, "\nGeneration %d:\n", opts.Show)
		for _, line := range result.Diagnostics {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}

// filter builds the cycle filter selected by the flags.
func (o *HistoryOptions) filter() (query.Predicate, error) {
	if o.KeyStatus != "" && o.Key == "" {
		return nil, errors.New("--key-status requires --key")
	}
	var preds []query.Predicate
	if o.Status != "" {
		preds = append(preds, query.Equals{Field: query.FieldStatus, Value: o.Status})
	}
	if o.Key != "" {
		preds = append(preds, query.HasOutcome{Key: o.Key, Status: o.KeyStatus})
	}
	p := query.All(preds...)
	if errs := query.Validate(p); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
