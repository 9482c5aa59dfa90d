// internal/tui/app.go
//
// This is the operator screen for looktime.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: what the operator currently sees
// 2. Update: keys and session progress arrive as messages
// 3. View: renders the current screen to a string
//
// The session itself runs on its own goroutine. Keys are handed to the
// input listener and progress comes back through an Observer, so the
// screen never touches trial state directly.

package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/looktime/internal/input"
	"github.com/kingrea/looktime/internal/logbook"
	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/trial"
)

// appState represents which screen we're on
type appState int

const (
	stateSubject appState = iota // Typing the subject identifier
	statePrompt                  // Waiting for SPACE before a trial
	stateRunning                 // Trial in progress
	stateDone                    // Session over, program is exiting
)

const logPanelLines = 6

// StartFunc launches the session once the subject is known. It must not
// block.
type StartFunc func(subject string)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithSubject skips the subject entry screen.
func WithSubject(subject string) AppOption {
	return func(a *App) {
		a.subject = strings.TrimSpace(subject)
	}
}

// WithStart registers the session launcher.
func WithStart(start StartFunc) AppOption {
	return func(a *App) {
		if start != nil {
			a.start = start
		}
	}
}

// WithLogbook shows the tail of the session journal under the main panel.
func WithLogbook(lb *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = lb
	}
}

type promptMsg session.Prompt

type snapshotMsg trial.Snapshot

type attemptMsg session.Attempt

type sessionDoneMsg struct {
	err error
}

// App is the bubbletea model for a looktime session.
type App struct {
	state    appState
	listener *input.Listener
	keys     input.KeyMap
	help     help.Model
	logbook  *logbook.Logbook
	start    StartFunc
	started  bool

	subjectInput textinput.Model
	subject      string
	notice       string

	prompt    session.Prompt
	hasPrompt bool
	snapshot  trial.Snapshot
	attempts  []session.Attempt
	err       error
	quitting  bool

	width  int
	height int
}

// NewApp creates the model. Every key press after subject entry goes to
// listener.
func NewApp(listener *input.Listener, opts ...AppOption) *App {
	ti := textinput.New()
	ti.Placeholder = "subject id"
	ti.CharLimit = 64
	ti.Width = 32
	ti.Prompt = "› "

	a := &App{
		state:        stateSubject,
		listener:     listener,
		keys:         listener.Keys(),
		help:         help.New(),
		subjectInput: ti,
		start:        func(string) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.subject != "" {
		a.state = statePrompt
	}
	return a
}

// Subject returns the subject identifier, empty until entered.
func (a *App) Subject() string { return a.subject }

// Attempts returns the attempts the screen has been told about.
func (a *App) Attempts() []session.Attempt {
	return append([]session.Attempt(nil), a.attempts...)
}

// Err returns the error the session finished with, if any.
func (a *App) Err() error { return a.err }

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	if a.state == stateSubject {
		return tea.Batch(a.subjectInput.Focus(), textinput.Blink)
	}
	a.launch()
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case promptMsg:
		a.prompt = session.Prompt(msg)
		a.hasPrompt = true
		a.snapshot = trial.Snapshot{}
		a.state = statePrompt
		return a, nil

	case snapshotMsg:
		a.snapshot = trial.Snapshot(msg)
		a.state = stateRunning
		return a, nil

	case attemptMsg:
		a.attempts = append(a.attempts, session.Attempt(msg))
		return a, nil

	case sessionDoneMsg:
		a.err = msg.err
		a.state = stateDone
		return a, tea.Quit

	case tea.KeyMsg:
		if a.state == stateSubject {
			return a.updateSubject(msg)
		}
		sig := a.listener.HandleKey(msg)
		if sig.Kind == input.Quit {
			a.quitting = true
			a.state = stateDone
			return a, tea.Quit
		}
		return a, nil
	}

	if a.state == stateSubject {
		var cmd tea.Cmd
		a.subjectInput, cmd = a.subjectInput.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateSubject(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		a.listener.HandleKey(msg)
		a.quitting = true
		a.state = stateDone
		return a, tea.Quit
	case tea.KeyEnter:
		subject := strings.TrimSpace(a.subjectInput.Value())
		if subject == "" {
			a.notice = "A subject identifier is required."
			return a, nil
		}
		a.subject = subject
		a.notice = ""
		a.subjectInput.Blur()
		a.state = statePrompt
		a.launch()
		return a, nil
	}
	var cmd tea.Cmd
	a.subjectInput, cmd = a.subjectInput.Update(msg)
	return a, cmd
}

func (a *App) launch() {
	if a.started {
		return
	}
	a.started = true
	a.start(a.subject)
}

// View renders the current screen.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 80
	}
	var content string
	switch a.state {
	case stateSubject:
		content = a.renderSubject()
	case statePrompt:
		content = a.renderPrompt()
	case stateRunning:
		content = a.renderTrial()
	case stateDone:
		content = a.renderDone()
	}
	main := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-2)).
		Render(content)

	sections := []string{a.renderHeader(), main}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("◉ LOOKTIME")
	if a.subject == "" {
		return title
	}
	meta := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(fmt.Sprintf("  subject %s · %d attempt(s) saved", a.subject, len(a.attempts)))
	return title + meta
}

func (a *App) renderSubject() string {
	head := lipgloss.NewStyle().Bold(true).Render("Subject identifier")
	lines := []string{head, "", a.subjectInput.View(), ""}
	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render("enter: start session · ctrl+c: quit")
	lines = append(lines, hint)
	if a.notice != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(a.notice))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderPrompt() string {
	if !a.hasPrompt {
		return "Preparing session..."
	}
	name := a.prompt.Definition.Name
	lines := []string{
		lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render(fmt.Sprintf("Trial %d of %d · attempt %d", a.prompt.Index+1, a.prompt.Total, a.prompt.Attempt)),
		"",
		lipgloss.NewStyle().Bold(true).Render(name),
		strings.Repeat("=", lipgloss.Width(name)),
		"",
		"(press SPACE to continue)",
		"",
		a.prompt.Definition.Prompt,
	}
	if a.prompt.Message != "" {
		lines = append(lines, "", lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			Render(a.prompt.Message))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderTrial() string {
	s := a.snapshot
	title := lipgloss.NewStyle().Bold(true).Render(s.Trial)
	boxes := make([]string, 0, len(trial.Focuses))
	for _, f := range trial.Focuses {
		boxes = append(boxes, renderFocusBox(f, spentFor(s, f), f == s.Focus))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, boxes...)

	lookTime := "-"
	if s.Looked {
		lookTime = formatSeconds(s.LookTime)
	}
	stats := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(fmt.Sprintf("image time %s · since first look %s · elapsed %s · %s",
			formatSeconds(s.ImageTime), lookTime, formatSeconds(s.Elapsed), s.Status))
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		"Current focus: "+s.Focus.String(),
		row,
		stats,
	)
}

func (a *App) renderDone() string {
	switch {
	case a.err != nil && !a.quitting:
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Render(fmt.Sprintf("Session stopped: %v", a.err))
	case a.quitting:
		return "Quitting without saving the trial in progress."
	default:
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5BD68A")).
			Render("All trials complete.")
	}
}

func renderFocusBox(f trial.Focus, spent time.Duration, active bool) string {
	border := lipgloss.Color("#444444")
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	if active {
		border = lipgloss.Color("#5B8DEF")
		label = label.Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	}
	body := fmt.Sprintf("%s\n%s s", label.Render(strings.ToUpper(f.String())), formatSeconds(spent))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 2).
		Width(16).
		Render(body)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, _ := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", fileName))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func spentFor(s trial.Snapshot, f trial.Focus) time.Duration {
	switch f {
	case trial.Left:
		return s.Left
	case trial.Right:
		return s.Right
	default:
		return s.Away
	}
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}
