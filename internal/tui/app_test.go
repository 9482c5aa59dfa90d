package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/looktime/internal/input"
	"github.com/kingrea/looktime/internal/logbook"
	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/trial"
)

func TestSubjectEntryLaunchesSessionOnce(t *testing.T) {
	var started []string
	app := newTestApp(t, nil, WithStart(func(subject string) { started = append(started, subject) }))
	if app.state != stateSubject {
		t.Fatalf("expected subject screen, got %v", app.state)
	}
	app.Init()
	app = update(t, app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b07")})
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if len(started) != 1 || started[0] != "b07" {
		t.Fatalf("expected one start for b07, got %v", started)
	}
	if app.Subject() != "b07" || app.state != statePrompt {
		t.Fatalf("unexpected state after entry: subject=%q state=%v", app.Subject(), app.state)
	}
}

func TestEmptySubjectIsRejected(t *testing.T) {
	called := false
	app := newTestApp(t, nil, WithStart(func(string) { called = true }))
	app.Init()
	app = update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if called {
		t.Fatalf("start must not run without a subject")
	}
	if !strings.Contains(app.View(), "subject identifier is required") {
		t.Fatalf("expected a notice, got:\n%s", app.View())
	}
}

func TestPresetSubjectStartsOnInit(t *testing.T) {
	var started string
	app := newTestApp(t, nil,
		WithSubject("  s12 "),
		WithStart(func(subject string) { started = subject }),
	)
	if cmd := app.Init(); cmd != nil {
		t.Fatalf("expected no init command with a preset subject")
	}
	if started != "s12" {
		t.Fatalf("start called with %q", started)
	}
	if !strings.Contains(app.View(), "Preparing session") {
		t.Fatalf("expected waiting screen, got:\n%s", app.View())
	}
}

func TestKeysReachListenerInOrder(t *testing.T) {
	listener := input.NewListener(input.DefaultKeyMap(), nil)
	app := newTestApp(t, listener, WithSubject("s1"))
	app.Init()
	keys := []tea.KeyMsg{
		{Type: tea.KeySpace, Runes: []rune{' '}},
		{Type: tea.KeyLeft},
		{Type: tea.KeyRunes, Runes: []rune("x")},
		{Type: tea.KeyRight},
		{Type: tea.KeyUp},
	}
	for _, k := range keys {
		app = update(t, app, k)
	}
	if got := listener.Pending(); got != 4 {
		t.Fatalf("pending signals = %d, want 4", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)
	want := []input.Signal{
		{Kind: input.Continue},
		input.FocusSignal(trial.Left),
		input.FocusSignal(trial.Right),
		input.FocusSignal(trial.Away),
	}
	for i, w := range want {
		select {
		case got := <-listener.Signals():
			if got != w {
				t.Fatalf("signal %d = %v, want %v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for signal %d", i)
		}
	}
}

func TestQuitKeyCancelsAndQuits(t *testing.T) {
	cancelled := false
	listener := input.NewListener(input.DefaultKeyMap(), func() { cancelled = true })
	app := NewApp(listener, WithSubject("s1"))
	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	app = model.(*App)
	if !cancelled {
		t.Fatalf("quit must cancel the session")
	}
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if !strings.Contains(app.View(), "without saving") {
		t.Fatalf("expected quit notice, got:\n%s", app.View())
	}
}

func TestCtrlCQuitsFromSubjectEntry(t *testing.T) {
	cancelled := false
	listener := input.NewListener(input.DefaultKeyMap(), func() { cancelled = true })
	app := NewApp(listener)
	app.Init()
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !cancelled || cmd == nil {
		t.Fatalf("ctrl+c should cancel and quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestObserverDrivesScreens(t *testing.T) {
	app := newTestApp(t, nil, WithSubject("s1"))
	app.Init()
	sender := &appSender{t: t, app: app}
	obs := NewObserver(sender)
	def := trial.Definition{Name: "Test 1a", Prompt: "Watch the screen", MaxImageTime: time.Second}

	obs.PromptShown(session.Prompt{Index: 1, Total: 6, Definition: def, Attempt: 2, Retry: true, Message: session.RetryMessage})
	view := app.View()
	for _, want := range []string{"Test 1a", "=======", "(press SPACE to continue)", "Watch the screen", session.RetryMessage, "Trial 2 of 6"} {
		if !strings.Contains(view, want) {
			t.Fatalf("prompt view missing %q:\n%s", want, view)
		}
	}

	obs.TrialUpdated(trial.Snapshot{
		Trial:     "Test 1a",
		Focus:     trial.Left,
		Left:      1500 * time.Millisecond,
		ImageTime: 1500 * time.Millisecond,
		Status:    trial.StatusRunning,
	})
	view = app.View()
	if !strings.Contains(view, "Current focus: left") || !strings.Contains(view, "1.50 s") {
		t.Fatalf("trial view missing focus details:\n%s", view)
	}

	obs.AttemptFinished(session.Attempt{Trial: "Test 1a", Number: 2, Status: trial.StatusSuccess})
	if got := len(app.Attempts()); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}

	obs.Finished(nil)
	if app.state != stateDone || !strings.Contains(app.View(), "All trials complete") {
		t.Fatalf("expected done screen:\n%s", app.View())
	}
	if len(sender.cmds) == 0 {
		t.Fatalf("expected quit command after finish")
	}
	if _, ok := sender.cmds[len(sender.cmds)-1]().(tea.QuitMsg); !ok {
		t.Fatalf("finish should quit the program")
	}
}

func TestFinishedWithErrorIsShown(t *testing.T) {
	app := newTestApp(t, nil, WithSubject("s1"))
	sender := &appSender{t: t, app: app}
	NewObserver(sender).Finished(errors.New("disk full"))
	if app.Err() == nil || !strings.Contains(app.View(), "disk full") {
		t.Fatalf("expected error on done screen:\n%s", app.View())
	}
}

func TestLogPanelShowsJournalTail(t *testing.T) {
	lb, err := logbook.New(filepath.Join(t.TempDir(), logbook.FileName))
	if err != nil {
		t.Fatalf("logbook: %v", err)
	}
	for i := 0; i < logPanelLines+2; i++ {
		lb.Info("event %d", i)
	}
	app := newTestApp(t, nil, WithSubject("s1"), WithLogbook(lb))
	view := app.View()
	if !strings.Contains(view, "LOG · "+logbook.FileName) {
		t.Fatalf("expected log panel header:\n%s", view)
	}
	if strings.Contains(view, "event 0") || !strings.Contains(view, "event 7") {
		t.Fatalf("expected only the newest entries:\n%s", view)
	}
}

func newTestApp(t *testing.T, listener *input.Listener, opts ...AppOption) *App {
	t.Helper()
	if listener == nil {
		listener = input.NewListener(input.DefaultKeyMap(), nil)
	}
	return NewApp(listener, opts...)
}

func update(t *testing.T, app *App, msg tea.Msg) *App {
	t.Helper()
	model, _ := app.Update(msg)
	next, ok := model.(*App)
	if !ok {
		t.Fatalf("unexpected model type: %T", model)
	}
	return next
}

type appSender struct {
	t    *testing.T
	app  *App
	cmds []tea.Cmd
}

func (s *appSender) Send(msg tea.Msg) {
	model, cmd := s.app.Update(msg)
	next, ok := model.(*App)
	if !ok {
		s.t.Fatalf("unexpected model type: %T", model)
	}
	s.app = next
	if cmd != nil {
		s.cmds = append(s.cmds, cmd)
	}
}
