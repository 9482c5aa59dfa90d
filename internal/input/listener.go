package input

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Listener queues translated key presses and forwards them, in order, to a
// single consumer. HandleKey never blocks, so the terminal event loop that
// reads keys is never held up by the session loop.
type Listener struct {
	keys   KeyMap
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []Signal
	closed bool
	notify chan struct{}

	out  chan Signal
	once sync.Once
}

// NewListener creates a listener. cancel, when non-nil, is called as soon as
// a Quit key is seen so every loop watching the session context unwinds.
func NewListener(keys KeyMap, cancel context.CancelFunc) *Listener {
	return &Listener{
		keys:   keys,
		cancel: cancel,
		notify: make(chan struct{}, 1),
		out:    make(chan Signal),
	}
}

// Keys returns the key map in use.
func (l *Listener) Keys() KeyMap { return l.keys }

// Signals is the only place signals are consumed from. It is closed when Run
// returns.
func (l *Listener) Signals() <-chan Signal { return l.out }

// HandleKey translates msg and queues the result. Unrecognized keys are
// dropped.
func (l *Listener) HandleKey(msg tea.KeyMsg) Signal {
	sig := l.keys.Translate(msg)
	if sig.Kind == Unrecognized {
		return sig
	}
	l.Push(sig)
	if sig.Kind == Quit && l.cancel != nil {
		l.cancel()
	}
	return sig
}

// Push queues a signal. It reports false once the listener is closed. Nothing
// is accepted after Quit.
func (l *Listener) Push(sig Signal) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, sig)
	if sig.Kind == Quit {
		l.closed = true
	}
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Run forwards queued signals until ctx is done or a Quit signal has been
// delivered.
func (l *Listener) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.out) })
	for {
		sig, ok := l.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-l.notify:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case l.out <- sig:
		}
		if sig.Kind == Quit {
			return nil
		}
	}
}

// Pending reports how many signals are waiting to be consumed.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Listener) pop() (Signal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return Signal{}, false
	}
	sig := l.queue[0]
	l.queue = l.queue[1:]
	return sig, true
}
