package trial

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Focus is where the observer reports the child is looking.
type Focus int

const (
	Away Focus = iota
	Left
	Right
)

var focusNames = [...]string{"away", "left", "right"}

// Focuses lists every focus in column order.
var Focuses = []Focus{Away, Left, Right}

func (f Focus) String() string {
	if f < Away || f > Right {
		return "unknown"
	}
	return focusNames[f]
}

// OnImage reports whether the focus is one of the two images.
func (f Focus) OnImage() bool {
	return f == Left || f == Right
}

// ParseFocus converts a focus name back into a Focus.
func ParseFocus(value string) (Focus, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for i, name := range focusNames {
		if name == v {
			return Focus(i), nil
		}
	}
	return Away, goerr.New("unknown focus", goerr.V("value", value))
}

// Status is the outcome of evaluating a trial.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether the trial has ended.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}
