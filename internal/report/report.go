// Package report renders trial sets, session summaries and saved logs as
// terminal tables.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/store"
	"github.com/kingrea/looktime/internal/trial"
)

// Options control table rendering.
type Options struct {
	// Width caps the row length; zero leaves rows unbounded.
	Width int
	Color bool
}

// Detect picks options for out: its terminal width and whether colour is
// wanted.
func Detect(out *os.File) Options {
	return Options{Width: determineWidth(out), Color: shouldUseColor(out)}
}

// WriteTrials lists the configured trials in run order.
func WriteTrials(w io.Writer, defs []trial.Definition, opts Options) error {
	tw := newTable(w, opts)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"#", "Trial", "Kind", "Max image", "Max after look", "Min image"})
	for i, def := range defs {
		tw.AppendRow(table.Row{
			i + 1,
			def.Name,
			string(def.Kind()),
			formatLimit(def.MaxImageTime),
			formatLimit(def.MaxTimeAfterFirstImageLook),
			formatLimit(def.MinImageTime),
		})
	}
	if len(defs) == 0 {
		tw.AppendRow(table.Row{"-", "(no trials)", "-", "-", "-", "-"})
	}
	_ = tw.Render()
	return nil
}

// WriteSummary lists every finished attempt of a session.
func WriteSummary(w io.Writer, subject string, attempts []session.Attempt, opts Options) error {
	if _, err := fmt.Fprintf(w, "Subject %s\n", subject); err != nil {
		return err
	}
	tw := newTable(w, opts)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"Trial", "Attempt", "Status", "Image time", "Elapsed", "File"})

	var succeeded, failed int
	for _, a := range attempts {
		switch a.Status {
		case trial.StatusSuccess:
			succeeded++
		case trial.StatusFailed:
			failed++
		}
		tw.AppendRow(table.Row{
			a.Trial,
			a.Number,
			colorStatus(a.Status, opts.Color),
			formatSeconds(a.ImageTime),
			formatSeconds(a.Elapsed),
			filepath.Base(a.Path),
		})
	}
	if len(attempts) == 0 {
		tw.AppendRow(table.Row{"(no attempts)", "-", "-", "-", "-", "-"})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok / %d failed", succeeded, failed), "", "", ""})
	_ = tw.Render()
	return nil
}

// WriteLog renders the rows of a saved trial log.
func WriteLog(w io.Writer, rows []trial.Row, opts Options) error {
	tw := newTable(w, opts)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	header := table.Row{}
	for _, col := range store.Header {
		header = append(header, col)
	}
	tw.AppendHeader(header)
	for _, r := range rows {
		rec := store.Record(r)
		row := make(table.Row, 0, len(rec))
		for _, v := range rec {
			row = append(row, v)
		}
		tw.AppendRow(row)
	}
	_ = tw.Render()
	return nil
}

func newTable(w io.Writer, opts Options) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	if opts.Width > 0 {
		tw.SetAllowedRowLength(opts.Width)
	}
	return tw
}

func colorStatus(s trial.Status, color bool) string {
	if !color {
		return string(s)
	}
	switch s {
	case trial.StatusSuccess:
		return text.Colors{text.FgGreen}.Sprint(string(s))
	case trial.StatusFailed:
		return text.Colors{text.FgRed}.Sprint(string(s))
	default:
		return string(s)
	}
}

func formatLimit(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.String()
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func determineWidth(out *os.File) int {
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

func shouldUseColor(out *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || out == nil {
		return false
	}
	fd := out.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
