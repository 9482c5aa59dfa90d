package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/trial"
)

func TestWriteTrials(t *testing.T) {
	var buf bytes.Buffer
	defs := []trial.Definition{
		{Name: "Familiarization 1", MaxImageTime: 20 * time.Second},
		{Name: "Test 1a", MaxTimeAfterFirstImageLook: 20 * time.Second, MinImageTime: time.Second},
	}
	if err := WriteTrials(&buf, defs, Options{}); err != nil {
		t.Fatalf("WriteTrials returned error: %v", err)
	}
	out := strings.ToLower(buf.String())
	for _, want := range []string{"familiarization 1", "familiarization", "test 1a", "20s", "1s", "max after look"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTrialsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTrials(&buf, nil, Options{}); err != nil {
		t.Fatalf("WriteTrials returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "(no trials)") {
		t.Fatalf("expected placeholder row:\n%s", buf.String())
	}
}

func TestWriteSummaryCountsOutcomes(t *testing.T) {
	var buf bytes.Buffer
	attempts := []session.Attempt{
		{Trial: "Test 1a", Number: 1, Status: trial.StatusFailed, ImageTime: 500 * time.Millisecond, Path: "/data/s1_Test 1a_failed_x.csv"},
		{Trial: "Test 1a", Number: 2, Status: trial.StatusSuccess, ImageTime: 2 * time.Second, Path: "/data/s1_Test 1a.csv"},
	}
	if err := WriteSummary(&buf, "s1", attempts, Options{}); err != nil {
		t.Fatalf("WriteSummary returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Subject s1", "s1_Test 1a.csv", "failed", "0.500s", "2.000s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(strings.ToLower(out), "1 ok / 1 failed") {
		t.Fatalf("summary missing totals:\n%s", out)
	}
	if strings.Contains(out, "/data/") {
		t.Fatalf("summary should show file names only:\n%s", out)
	}
}

func TestWriteLogUsesCSVColumns(t *testing.T) {
	var buf bytes.Buffer
	rows := []trial.Row{
		{Event: "away"},
		{Event: "left", SinceLast: 500 * time.Millisecond, Away: 500 * time.Millisecond},
		{Event: trial.EventFinish, SinceLast: time.Second, Away: 500 * time.Millisecond, Left: time.Second},
	}
	if err := WriteLog(&buf, rows, Options{}); err != nil {
		t.Fatalf("WriteLog returned error: %v", err)
	}
	out := strings.ToLower(buf.String())
	for _, want := range []string{"since_previous_s", "finish", "0.500000", "1.000000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log table missing %q:\n%s", want, out)
		}
	}
}

func TestColorStatus(t *testing.T) {
	text.EnableColors()
	if got := colorStatus(trial.StatusSuccess, false); got != "success" {
		t.Fatalf("plain status = %q", got)
	}
	if got := colorStatus(trial.StatusFailed, true); got == "failed" || !strings.Contains(got, "failed") {
		t.Fatalf("coloured status = %q", got)
	}
}
