// Package store writes finished trial logs to CSV files.
//
// Each trial log is written exactly once, after the trial is terminal, so the
// store holds no locks. Failed attempts get a timestamped name and are created
// exclusively, which means a failed log can never replace another file.
package store

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kingrea/looktime/internal/trial"
)

// FailedStampLayout formats the failure instant embedded in failed file names.
const FailedStampLayout = "20060102T150405.000000000"

// ErrExists is returned when a failed-attempt file name is already taken.
var ErrExists = errors.New("log file already exists")

// Header names the CSV columns.
var Header = []string{"focus", "since_previous_s", "total_away_s", "total_left_s", "total_right_s"}

// Store writes logs for one subject into a directory.
type Store struct {
	dir     string
	subject string
	header  bool
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithHeader writes a column header line before the log rows.
func WithHeader(enabled bool) Option {
	return func(s *Store) {
		s.header = enabled
	}
}

// New builds a store rooted at dir for subject.
func New(dir, subject string, opts ...Option) *Store {
	s := &Store{dir: dir, subject: subject}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Subject returns the subject the store writes for.
func (s *Store) Subject() string { return s.subject }

// FileName returns the file name for a finished attempt:
// {subject}_{trial}.csv on success and
// {subject}_{trial}_failed_{timestamp}.csv otherwise.
func FileName(subject, trialName string, status trial.Status, at time.Time) string {
	base := sanitize(subject) + "_" + sanitize(trialName)
	if status == trial.StatusFailed {
		return base + "_failed_" + at.Format(FailedStampLayout) + ".csv"
	}
	return base + ".csv"
}

// Save writes rows for a finished attempt and returns the file path.
func (s *Store) Save(trialName string, status trial.Status, at time.Time, rows []trial.Row) (string, error) {
	if !status.Terminal() {
		return "", goerr.New("trial is not finished", goerr.V("trial", trialName), goerr.V("status", status))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", goerr.Wrap(err, "ensure output dir", goerr.V("dir", s.dir))
	}
	path := filepath.Join(s.dir, FileName(s.subject, trialName, status, at))

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if status == trial.StatusFailed {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", goerr.Wrap(ErrExists, "refusing to overwrite log", goerr.V("path", path))
		}
		return "", goerr.Wrap(err, "create log file", goerr.V("path", path))
	}
	if err := s.write(f, rows); err != nil {
		f.Close()
		return "", goerr.Wrap(err, "write log file", goerr.V("path", path))
	}
	if err := f.Close(); err != nil {
		return "", goerr.Wrap(err, "close log file", goerr.V("path", path))
	}
	return path, nil
}

func (s *Store) write(w io.Writer, rows []trial.Row) error {
	cw := csv.NewWriter(w)
	if s.header {
		if err := cw.Write(Header); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := cw.Write(Record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record renders a row as CSV fields.
func Record(r trial.Row) []string {
	return []string{
		r.Event,
		FormatSeconds(r.SinceLast),
		FormatSeconds(r.Away),
		FormatSeconds(r.Left),
		FormatSeconds(r.Right),
	}
}

// FormatSeconds renders d as fractional seconds with microsecond precision.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

// ReadLog parses a log file written by Save. A header line is skipped.
func ReadLog(path string) ([]trial.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "open log file", goerr.V("path", path))
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(Header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, goerr.Wrap(err, "parse log file", goerr.V("path", path))
	}
	rows := make([]trial.Row, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == Header[0] {
			continue
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, goerr.Wrap(err, "parse log row", goerr.V("path", path), goerr.V("line", i+1))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (trial.Row, error) {
	values := make([]time.Duration, 4)
	for i := range values {
		secs, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return trial.Row{}, goerr.Wrap(err, "invalid seconds", goerr.V("column", Header[i+1]))
		}
		values[i] = time.Duration(secs * float64(time.Second)).Round(time.Microsecond)
	}
	return trial.Row{
		Event:     rec[0],
		SinceLast: values[0],
		Away:      values[1],
		Left:      values[2],
		Right:     values[3],
	}, nil
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, value)
}
