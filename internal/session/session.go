// Package session runs an ordered list of trials for one subject.
//
// Run is the only caller of FocusTrial.Apply: timer ticks and operator
// signals are interleaved on its goroutine through a select, so trial state
// never needs a lock.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kingrea/looktime/internal/clock"
	"github.com/kingrea/looktime/internal/input"
	"github.com/kingrea/looktime/internal/logbook"
	"github.com/kingrea/looktime/internal/trial"
)

// ErrQuit is returned when the operator abandons the session. The trial in
// progress is discarded.
var ErrQuit = errors.New("session abandoned by operator")

// RetryMessage is shown on the prompt after a failed attempt.
const RetryMessage = "THE PREVIOUS RUN FAILED. TRYING AGAIN."

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 50 * time.Millisecond

// Saver persists a finished trial log and returns where it went.
type Saver interface {
	Save(trialName string, status trial.Status, at time.Time, rows []trial.Row) (string, error)
}

// Observer receives read-only session progress, typically to render it.
// Calls happen on the session goroutine and must not block for long.
type Observer interface {
	PromptShown(Prompt)
	TrialUpdated(trial.Snapshot)
	AttemptFinished(Attempt)
}

// Prompt describes the screen shown while waiting for the operator to start
// a trial.
type Prompt struct {
	Index      int
	Total      int
	Definition trial.Definition
	Attempt    int
	Retry      bool
	Message    string
}

// Attempt records one finished run of a definition.
type Attempt struct {
	Trial      string
	Index      int
	Number     int
	Status     trial.Status
	ImageTime  time.Duration
	Elapsed    time.Duration
	Rows       int
	Path       string
	FinishedAt time.Time
}

// Session sequences trials for one subject.
type Session struct {
	id       string
	subject  string
	defs     []trial.Definition
	saver    Saver
	clock    clock.Clock
	interval time.Duration
	observer Observer
	logbook  *logbook.Logbook

	attempts []Attempt
}

// Option customizes a Session.
type Option func(*Session)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithInterval sets how often a running trial is re-evaluated.
func WithInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithLogbook journals session events.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Session) {
		s.logbook = lb
	}
}

// WithID fixes the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New validates every definition up front and builds a session.
func New(subject string, defs []trial.Definition, saver Saver, opts ...Option) (*Session, error) {
	if subject == "" {
		return nil, goerr.New("subject is required")
	}
	if saver == nil {
		return nil, goerr.New("saver is required")
	}
	if err := trial.ValidateAll(defs); err != nil {
		return nil, goerr.Wrap(err, "invalid trial list", goerr.V("subject", subject))
	}
	s := &Session{
		id:       uuid.NewString(),
		subject:  subject,
		defs:     append([]trial.Definition(nil), defs...),
		saver:    saver,
		clock:    clock.Real{},
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Subject returns the subject identifier.
func (s *Session) Subject() string { return s.subject }

// Definitions returns the trials in run order.
func (s *Session) Definitions() []trial.Definition {
	return append([]trial.Definition(nil), s.defs...)
}

// Attempts returns every finished attempt. Only call it once Run has
// returned.
func (s *Session) Attempts() []Attempt {
	return append([]Attempt(nil), s.attempts...)
}

// Run executes every definition in order, retrying failed attempts until
// they succeed. signals must have a single consumer: this call. It returns
// ErrQuit when the operator quits or ctx is cancelled, and a storage error
// if a log cannot be written.
func (s *Session) Run(ctx context.Context, signals <-chan input.Signal) error {
	s.logInfo("Session opened · subject %s · %d trial(s)", s.subject, len(s.defs))
	for i, def := range s.defs {
		failures := 0
		for {
			prompt := Prompt{Index: i, Total: len(s.defs), Definition: def, Attempt: failures + 1}
			if failures > 0 {
				prompt.Retry = true
				prompt.Message = RetryMessage
			}
			if s.observer != nil {
				s.observer.PromptShown(prompt)
			}
			if err := s.awaitContinue(ctx, signals); err != nil {
				return err
			}
			att, err := s.runAttempt(ctx, signals, i, def, failures+1)
			if err != nil {
				return err
			}
			if att.Status == trial.StatusSuccess {
				break
			}
			failures++
		}
	}
	s.logInfo("Session complete · %d attempt(s)", len(s.attempts))
	return nil
}

func (s *Session) awaitContinue(ctx context.Context, signals <-chan input.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return abort(ctx.Err())
		case sig, ok := <-signals:
			if !ok {
				return abort(nil)
			}
			switch sig.Kind {
			case input.Quit:
				return abort(nil)
			case input.Continue:
				return nil
			}
		}
	}
}

func (s *Session) runAttempt(ctx context.Context, signals <-chan input.Signal, index int, def trial.Definition, number int) (Attempt, error) {
	tr := trial.New(def, s.clock)
	tr.Start()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logInfo("Trial %q · attempt %d started", def.Name, number)
	s.publish(tr)

	for {
		var status trial.Status
		select {
		case <-ctx.Done():
			return Attempt{}, abort(ctx.Err())
		case sig, ok := <-signals:
			if !ok {
				return Attempt{}, abort(nil)
			}
			switch sig.Kind {
			case input.Quit:
				return Attempt{}, abort(nil)
			case input.FocusChange:
				focus := sig.Focus
				status = tr.Apply(&focus)
			default:
				continue
			}
		case <-ticker.C():
			status = tr.Apply(nil)
		}
		s.publish(tr)
		if !status.Terminal() {
			continue
		}
		// A quit that raced with the final evaluation still discards the log.
		if err := ctx.Err(); err != nil {
			return Attempt{}, abort(err)
		}
		return s.persist(tr, index, number)
	}
}

func (s *Session) persist(tr *trial.FocusTrial, index, number int) (Attempt, error) {
	def := tr.Definition()
	snap := tr.Snapshot()
	rows := tr.Log()
	at := s.clock.Now()
	path, err := s.saver.Save(def.Name, snap.Status, at, rows)
	if err != nil {
		s.logError("Trial %q · attempt %d could not be saved: %v", def.Name, number, err)
		return Attempt{}, goerr.Wrap(err, "persist trial log",
			goerr.V("trial", def.Name), goerr.V("attempt", number), goerr.V("subject", s.subject))
	}
	att := Attempt{
		Trial:      def.Name,
		Index:      index,
		Number:     number,
		Status:     snap.Status,
		ImageTime:  snap.ImageTime,
		Elapsed:    snap.Elapsed,
		Rows:       len(rows),
		Path:       path,
		FinishedAt: at,
	}
	s.attempts = append(s.attempts, att)
	if att.Status == trial.StatusFailed {
		s.logWarn("Trial %q · attempt %d failed (image time %s) · %s", def.Name, number, att.ImageTime.Round(time.Millisecond), path)
	} else {
		s.logInfo("Trial %q · attempt %d succeeded (image time %s) · %s", def.Name, number, att.ImageTime.Round(time.Millisecond), path)
	}
	if s.observer != nil {
		s.observer.AttemptFinished(att)
	}
	return att, nil
}

func (s *Session) publish(tr *trial.FocusTrial) {
	if s.observer != nil {
		s.observer.TrialUpdated(tr.Snapshot())
	}
}

func abort(cause error) error {
	if cause == nil {
		return ErrQuit
	}
	return goerr.Wrap(ErrQuit, "session cancelled", goerr.V("cause", cause.Error()))
}

func (s *Session) logInfo(format string, args ...any) {
	if s.logbook == nil {
		return
	}
	s.logbook.Info(format, args...)
}

func (s *Session) logWarn(format string, args ...any) {
	if s.logbook == nil {
		return
	}
	s.logbook.Warn(format, args...)
}

func (s *Session) logError(format string, args ...any) {
	if s.logbook == nil {
		return
	}
	s.logbook.Error(format, args...)
}
