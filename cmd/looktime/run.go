package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/looktime/internal/input"
	"github.com/kingrea/looktime/internal/logbook"
	"github.com/kingrea/looktime/internal/report"
	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/store"
	"github.com/kingrea/looktime/internal/tui"
)

// quitNotice is printed when the operator leaves mid-session.
const quitNotice = "Saw an exit key, quitting the program without saving the trial in progress."

// runSession wires the display, the key listener and the session loop
// together and waits for all three.
//
//	keys ─▶ tui.App ─▶ input.Listener ─▶ session.Run ─▶ store
//	                                          │
//	tui.App ◀──────── tui.Observer ◀──────────┘
func runSession(cmd *cobra.Command, opts runOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := requireTerminal(os.Stdin, os.Stdout); err != nil {
		return err
	}

	outputDir := cfg.OutputDir()
	if dir := strings.TrimSpace(opts.outputDir); dir != "" {
		outputDir = dir
	}
	interval := cfg.PollInterval()
	if opts.interval > 0 {
		interval = opts.interval
	}
	defs := cfg.Definitions()

	id := uuid.NewString()
	lb, err := logbook.New(filepath.Join(outputDir, logbook.FileName), logbook.WithSession(id))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	listener := input.NewListener(input.DefaultKeyMap(), cancel)
	subjects := make(chan string, 1)
	app := tui.NewApp(listener,
		tui.WithSubject(opts.subject),
		tui.WithLogbook(lb),
		tui.WithStart(func(subject string) { subjects <- subject }),
	)
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	observer := tui.NewObserver(program)

	var sess *session.Session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listener.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return goerr.Wrap(err, "run display")
		}
		return nil
	})
	g.Go(func() error {
		var subject string
		select {
		case <-gctx.Done():
			return nil
		case subject = <-subjects:
		}
		st := store.New(outputDir, subject, store.WithHeader(cfg.CSVHeader()))
		s, err := session.New(subject, defs, st,
			session.WithID(id),
			session.WithInterval(interval),
			session.WithObserver(observer),
			session.WithLogbook(lb),
		)
		if err != nil {
			observer.Finished(err)
			return err
		}
		sess = s
		err = s.Run(gctx, listener.Signals())
		observer.Finished(err)
		return err
	})
	err = g.Wait()

	out := cmd.OutOrStdout()
	switch {
	case sess == nil && (err == nil || errors.Is(err, session.ErrQuit)):
		fmt.Fprintln(out, "No session started.")
		return nil
	case errors.Is(err, session.ErrQuit):
		fmt.Fprintln(out, quitNotice)
	case err != nil:
		if sess != nil {
			_ = report.WriteSummary(cmd.ErrOrStderr(), sess.Subject(), sess.Attempts(), report.Options{})
		}
		return err
	default:
		fmt.Fprintf(out, "All %d trial(s) complete. Logs are in %s\n", len(defs), outputDir)
	}
	return report.WriteSummary(out, sess.Subject(), sess.Attempts(), tableOptions(out))
}

func requireTerminal(in, out *os.File) error {
	for _, f := range []*os.File{in, out} {
		fd := f.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return goerr.New("looktime needs an interactive terminal; use `looktime trials` or `looktime show` for scripted output",
				goerr.V("file", f.Name()))
		}
	}
	return nil
}

var _ session.Saver = (*store.Store)(nil)

var _ session.Observer = (*tui.Observer)(nil)
