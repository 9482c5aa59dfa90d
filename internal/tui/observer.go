package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/looktime/internal/session"
	"github.com/kingrea/looktime/internal/trial"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer turns session progress into App messages.
type Observer struct {
	sender Sender
}

// NewObserver creates an observer that forwards to sender.
func NewObserver(sender Sender) *Observer {
	return &Observer{sender: sender}
}

func (o *Observer) PromptShown(p session.Prompt) { o.sender.Send(promptMsg(p)) }

func (o *Observer) TrialUpdated(s trial.Snapshot) { o.sender.Send(snapshotMsg(s)) }

func (o *Observer) AttemptFinished(a session.Attempt) { o.sender.Send(attemptMsg(a)) }

// Finished tells the App the session is over, which quits the program.
func (o *Observer) Finished(err error) { o.sender.Send(sessionDoneMsg{err: err}) }
