package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/automata/internal/config"
	"github.com/roach88/automata/internal/console"
	"github.com/roach88/automata/internal/engine"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Database string
	Out      string
	Force    bool

	// Tokens allows overriding the cycle token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens engine.TokenGenerator
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <source.cue>",
		Short: "Run one compile cycle",
		Long: `Compile, build and render a source file once.

With --db the previous build is loaded from the database and definitions
whose text and dependencies are unchanged are reused instead of rebuilt.
The finished cycle is written back. With --out every graph below the
render threshold is written as <key>.dot.

Example:
  automata build --db ./automata.db --out ./graphs lamp.cue
  automata build --force --format json lamp.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for seeding and history")
	cmd.Flags().StringVar(&opts.Out, "out", "", "directory for rendered DOT files")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "compile even if the source is empty")

	return cmd
}

func runBuild(opts *BuildOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	settings, err := opts.settings()
	if err != nil {
		return err
	}
	text, err := LoadSource(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	if !opts.Force && text == "" {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("source file is empty: %s (use --force)", path), nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := openSession(ctx, sessionOptions{
		Database: opts.Database,
		Out:      opts.Out,
		Settings: config.NewProvider(settings),
		Tokens:   opts.Tokens,
	}, text)
	if err != nil {
		return err
	}
	defer sess.Close()

	if sess.seeded > 0 {
		formatter.VerboseLog("Seeded from generation %d", sess.seeded)
	}

	done := make(chan error, 1)
	go func() { done <- sess.engine.Run(ctx) }()
	sess.engine.Submit(opts.Force)

	var report engine.CycleReport
	select {
	case report = <-sess.reports:
	case err := <-done:
		return WrapExitError(ExitCommandError, "engine stopped before the cycle finished", err)
	}
	sess.engine.Stop()
	<-done

	for _, e := range sess.storeErrors() {
		formatter.VerboseLog("warning: %v", e)
	}
	if errs := sess.storeErrors(); len(errs) > 0 {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%d write error(s)", len(errs)), errs[0])
	}

	return outputCycle(formatter, report, sess.seeded)
}

// outputCycle prints one cycle and maps its status to an exit code.
func outputCycle(formatter *OutputFormatter, report engine.CycleReport, seeded int64) error {
	failed := cycleFailed(report)
	if formatter.Format == "json" {
		if err := formatter.Cycle(summarizeCycle(report, seeded), report.Token, failed); err != nil {
			return err
		}
	} else if err := console.RenderLines(formatter.Writer, report.Diagnostics); err != nil {
		return err
	}

	if failed {
		return NewExitError(ExitFailure, fmt.Sprintf("cycle %d %s", report.Generation, strings.ReplaceAll(string(report.Status), "_", " ")))
	}
	return nil
}
