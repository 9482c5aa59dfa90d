package logbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestAppendFormatsLevelAndSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	fixed := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	book, err := New(path,
		WithSession("0123456789abcdef"),
		WithClock(func() time.Time { return fixed }),
	)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.Warn("trial %s failed", "Test 1a")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "2024-02-03T04:05:06Z WARN  [01234567] trial Test 1a failed\n"
	if string(data) != want {
		t.Fatalf("line = %q, want %q", string(data), want)
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(3); lines != nil || total != 0 {
		t.Fatalf("nil tail = %v, %d", lines, total)
	}
	if book.Path() != "" {
		t.Fatalf("nil path should be empty")
	}
}
