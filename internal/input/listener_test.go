package input_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/m-mizutani/gt"

	"github.com/kingrea/looktime/internal/input"
	"github.com/kingrea/looktime/internal/trial"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestTranslate(t *testing.T) {
	keys := input.DefaultKeyMap()
	cases := []struct {
		name string
		msg  tea.KeyMsg
		want input.Signal
	}{
		{"up is away", tea.KeyMsg{Type: tea.KeyUp}, input.FocusSignal(trial.Away)},
		{"left arrow", tea.KeyMsg{Type: tea.KeyLeft}, input.FocusSignal(trial.Left)},
		{"right arrow", tea.KeyMsg{Type: tea.KeyRight}, input.FocusSignal(trial.Right)},
		{"space continues", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, input.Signal{Kind: input.Continue}},
		{"q quits", runeKey('q'), input.Signal{Kind: input.Quit}},
		{"ctrl+c quits", tea.KeyMsg{Type: tea.KeyCtrlC}, input.Signal{Kind: input.Quit}},
		{"down is ignored", tea.KeyMsg{Type: tea.KeyDown}, input.Signal{Kind: input.Unrecognized}},
		{"letters are ignored", runeKey('x'), input.Signal{Kind: input.Unrecognized}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, tc.want, keys.Translate(tc.msg))
		})
	}
}

func TestListenerDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := input.NewListener(input.DefaultKeyMap(), nil)
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	presses := []tea.KeyMsg{
		{Type: tea.KeyLeft},
		{Type: tea.KeyDown},
		{Type: tea.KeyRight},
		{Type: tea.KeyUp},
		{Type: tea.KeySpace, Runes: []rune{' '}},
		{Type: tea.KeyLeft},
	}
	for _, p := range presses {
		l.HandleKey(p)
	}
	want := []input.Signal{
		input.FocusSignal(trial.Left),
		input.FocusSignal(trial.Right),
		input.FocusSignal(trial.Away),
		{Kind: input.Continue},
		input.FocusSignal(trial.Left),
	}
	for i, w := range want {
		select {
		case got := <-l.Signals():
			gt.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatalf("signal %d not delivered", i)
		}
	}
	gt.Equal(t, 0, l.Pending())

	cancel()
	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("listener did not stop")
	}
	_, open := <-l.Signals()
	gt.True(t, !open)
}

func TestListenerQuitCancelsAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var cancelled bool
	l := input.NewListener(input.DefaultKeyMap(), func() { cancelled = true })

	sig := l.HandleKey(runeKey('q'))
	gt.Equal(t, input.Quit, sig.Kind)
	gt.True(t, cancelled)
	gt.True(t, !l.Push(input.FocusSignal(trial.Left)))

	go func() { _ = l.Run(ctx) }()
	select {
	case got := <-l.Signals():
		gt.Equal(t, input.Quit, got.Kind)
	case <-time.After(time.Second):
		t.Fatalf("quit not delivered")
	}
}
