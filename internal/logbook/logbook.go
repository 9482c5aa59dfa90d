// Package logbook keeps the operator-facing session journal: one line per
// session event, appended to a text file and tailed by the display.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// FileName is the journal file created inside the output directory.
const FileName = "looktime.log"

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends session events to a text file.
type Logbook struct {
	path    string
	session string
	now     func() time.Time
	mu      sync.Mutex
}

// Option customizes a Logbook.
type Option func(*Logbook)

// WithSession tags every line with a session id.
func WithSession(id string) Option {
	return func(l *Logbook) {
		l.session = strings.TrimSpace(id)
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logbook) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "ensure logbook dir", goerr.V("path", path))
	}
	l := &Logbook{path: path, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Session returns the session id, if any.
func (l *Logbook) Session() string {
	if l == nil {
		return ""
	}
	return l.session
}

// Append writes a single entry. Write errors are swallowed; the journal is
// advisory and trial logs are persisted separately.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := ""
	if l.session != "" {
		prefix = "[" + shortID(l.session) + "] "
	}
	line := fmt.Sprintf("%s %-5s %s%s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		prefix,
		strings.TrimSpace(message),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries and the total number
// of lines in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	total := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		total++
		lines = append(lines, scanner.Text())
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
