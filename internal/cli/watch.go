package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/automata/internal/config"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	Out      string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <source.cue>",
		Short: "Recompile a source file whenever it changes",
		Long: `Poll a source file and run a cycle on every change while live compiling
is enabled. Only definitions affected by an edit are rebuilt. The settings
file given with --config is re-read when it changes.

Pressing Enter (a line on stdin) or sending SIGHUP compiles and builds the
current file immediately, which is the only trigger when live compiling is
off.

Example:
  automata watch --out ./graphs lamp.cue
  automata watch --config settings.yaml --db ./automata.db lamp.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for seeding and history")
	cmd.Flags().StringVar(&opts.Out, "out", "", "directory for rendered DOT files")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	settings, err := opts.settings()
	if err != nil {
		return err
	}
	provider := config.NewProvider(settings)

	text, err := LoadSource(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, sessionOptions{
		Database: opts.Database,
		Out:      opts.Out,
		Settings: provider,
	}, text)
	if err != nil {
		return err
	}
	defer sess.Close()

	done := make(chan error, 1)
	go func() { done <- sess.engine.Run(ctx) }()

	src := newFileWatcher(path, text)
	cfg := newFileWatcher(opts.Config, "")
	if opts.Config != "" {
		cfg.poll() // prime with current contents
	}

	triggers := manualTriggers(ctx, cmd.InOrStdin())

	sess.engine.Submit(false)
	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "Watching %s. Press Enter to rebuild, Ctrl-C to stop.\n", path)
	}

	interval := provider.Settings().WatchInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			slog.Info("watch stopped")
			return nil

		case err := <-done:
			if err != nil && ctx.Err() == nil {
				return WrapExitError(ExitFailure, "engine error", err)
			}
			return nil

		case report := <-sess.reports:
			if formatter.Format != "json" {
				fmt.Fprintf(formatter.Writer, "\n── generation %d (%s) ──\n", report.Generation, report.Status)
			}
			// Cycle failures are shown, not fatal, while watching
			if err := outputCycle(formatter, report, sess.seeded); err != nil && GetExitCode(err) != ExitFailure {
				return err
			}

		case <-triggers:
			if data, changed, err := src.poll(); err != nil {
				slog.Warn("source file unreadable", "path", path, "error", err)
			} else if changed {
				sess.buffer.SetText(data)
			}
			slog.Debug("manual rebuild requested")
			sess.engine.Submit(true)

		case <-ticker.C:
			if opts.Config != "" {
				if data, changed, err := cfg.poll(); err != nil {
					slog.Warn("settings file unreadable", "path", opts.Config, "error", err)
				} else if changed {
					reloadSettings(provider, []byte(data))
				}
			}
			if next := provider.Settings().WatchInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}

			data, changed, err := src.poll()
			if err != nil {
				slog.Warn("source file unreadable", "path", path, "error", err)
				continue
			}
			if changed {
				sess.buffer.SetText(data)
				if !sess.engine.Edited() {
					formatter.VerboseLog("Source changed; live compiling is off")
				}
			}
		}
	}
}

// reloadSettings applies a changed settings file to the running engine.
func reloadSettings(p *config.Provider, data []byte) {
	f, err := config.Parse(data)
	if err != nil {
		slog.Warn("ignoring invalid settings", "error", err)
		return
	}
	s := p.Update(f)
	slog.Info("settings reloaded",
		"live_compiling", s.LiveCompiling,
		"live_building", s.LiveBuilding,
		"fair_abstraction", s.FairAbstraction,
		"watch_interval_ms", s.WatchIntervalMS,
	)
}

// manualTriggers merges lines read from in and SIGHUP into one channel of
// rebuild requests. The channel is never closed; reading stops at EOF.
func manualTriggers(ctx context.Context, in io.Reader) <-chan struct{} {
	out := make(chan struct{}, 1)
	send := func() {
		select {
		case out <- struct{}{}:
		default: // a request is already pending
		}
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				send()
			}
		}
	}()

	if in != nil {
		go func() {
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				if ctx.Err() != nil {
					return
				}
				send()
			}
		}()
	}
	return out
}

// fileWatcher detects content changes of one file by polling.
type fileWatcher struct {
	path string
	last string
}

func newFileWatcher(path, initial string) *fileWatcher {
	return &fileWatcher{path: path, last: initial}
}

// poll reads the file and reports whether its contents differ from the
// previous poll.
func (w *fileWatcher) poll() (string, bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return "", false, err
	}
	text := string(data)
	if text == w.last {
		return text, false, nil
	}
	w.last = text
	return text, true, nil
}
