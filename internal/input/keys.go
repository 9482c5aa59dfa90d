// Package input turns operator key presses into ordered session signals.
package input

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/looktime/internal/trial"
)

// Kind enumerates the signals an operator can send.
type Kind int

const (
	Unrecognized Kind = iota
	FocusChange
	Continue
	Quit
)

func (k Kind) String() string {
	switch k {
	case FocusChange:
		return "focus"
	case Continue:
		return "continue"
	case Quit:
		return "quit"
	default:
		return "unrecognized"
	}
}

// Signal is one translated key press. Focus is only meaningful for
// FocusChange.
type Signal struct {
	Kind  Kind
	Focus trial.Focus
}

func (s Signal) String() string {
	if s.Kind == FocusChange {
		return fmt.Sprintf("focus=%s", s.Focus)
	}
	return s.Kind.String()
}

// FocusSignal builds a FocusChange signal.
func FocusSignal(f trial.Focus) Signal {
	return Signal{Kind: FocusChange, Focus: f}
}

// KeyMap binds keys to signals. It satisfies help.KeyMap.
type KeyMap struct {
	Away     key.Binding
	Left     key.Binding
	Right    key.Binding
	Continue key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the standard bindings: arrows for focus, space to
// start a trial and q to abandon the session.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Away: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "away"),
		),
		Left: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "left image"),
		),
		Right: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "right image"),
		),
		Continue: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start trial"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit without saving"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Away, k.Continue, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Away},
		{k.Continue, k.Quit},
	}
}

// Translate maps a key press to a signal. Keys outside the map come back as
// Unrecognized.
func (k KeyMap) Translate(msg tea.KeyMsg) Signal {
	switch {
	case key.Matches(msg, k.Quit):
		return Signal{Kind: Quit}
	case key.Matches(msg, k.Away):
		return FocusSignal(trial.Away)
	case key.Matches(msg, k.Left):
		return FocusSignal(trial.Left)
	case key.Matches(msg, k.Right):
		return FocusSignal(trial.Right)
	case key.Matches(msg, k.Continue):
		return Signal{Kind: Continue}
	default:
		return Signal{Kind: Unrecognized}
	}
}
