// Package trial implements the per-trial timing state machine.
//
// A FocusTrial is owned by a single goroutine: the session loop calls Apply
// for both timer ticks and reported focus changes, so no locking happens here.
package trial

import (
	"time"

	"github.com/kingrea/looktime/internal/clock"
)

// EventFinish labels the terminal log row.
const EventFinish = "finish"

// Row is one line of the transition log. Totals are the cumulative time per
// focus at the moment the row was recorded.
type Row struct {
	Event     string
	SinceLast time.Duration
	Away      time.Duration
	Left      time.Duration
	Right     time.Duration
}

// Snapshot is a read-only view for the display.
type Snapshot struct {
	Trial     string
	Focus     Focus
	Away      time.Duration
	Left      time.Duration
	Right     time.Duration
	ImageTime time.Duration
	LookTime  time.Duration
	Looked    bool
	Elapsed   time.Duration
	Status    Status
	Rows      int
}

// FocusTrial tracks one attempt at a Definition.
type FocusTrial struct {
	def   Definition
	clock clock.Clock

	started          bool
	status           Status
	focus            Focus
	spent            [3]time.Duration
	startedAt        time.Time
	lastChangeAt     time.Time
	lastRowAt        time.Time
	firstImageLookAt time.Time
	looked           bool
	log              []Row
}

// New creates a trial for def. Call Start before the first Apply.
func New(def Definition, clk clock.Clock) *FocusTrial {
	if clk == nil {
		clk = clock.Real{}
	}
	return &FocusTrial{def: def, clock: clk, status: StatusRunning}
}

// Definition returns the definition the trial runs.
func (t *FocusTrial) Definition() Definition { return t.def }

// Start resets all counters and seeds the log with the initial away row.
func (t *FocusTrial) Start() {
	now := t.clock.Now()
	t.started = true
	t.status = StatusRunning
	t.focus = Away
	t.spent = [3]time.Duration{}
	t.startedAt = now
	t.lastChangeAt = now
	t.lastRowAt = now
	t.firstImageLookAt = time.Time{}
	t.looked = false
	t.log = t.log[:0]
	t.appendRow(Away.String(), now)
}

// Apply folds elapsed time into the current focus, records a focus change
// when one is reported, and evaluates the thresholds. Pass nil on a timer
// tick. Once the trial is terminal Apply returns the same status and changes
// nothing.
func (t *FocusTrial) Apply(change *Focus) Status {
	if !t.started {
		t.Start()
	}
	if t.status.Terminal() {
		return t.status
	}
	now := t.clock.Now()
	if delta := now.Sub(t.lastChangeAt); delta > 0 {
		t.spent[t.focus] += delta
		t.lastChangeAt = now
	}

	if change != nil && *change != t.focus {
		next := *change
		t.appendRow(next.String(), now)
		if !t.looked && next.OnImage() {
			t.firstImageLookAt = now
			t.looked = true
		}
		t.focus = next
	}

	imageTime := t.imageTime()
	lookTime := t.lookTime(now)

	// The image-time cap is checked before the after-look cap even when both
	// are exceeded at the same instant.
	if t.def.MaxImageTime > 0 && imageTime > t.def.MaxImageTime {
		return t.finish(StatusSuccess, now)
	}
	if t.def.MaxTimeAfterFirstImageLook > 0 && lookTime > t.def.MaxTimeAfterFirstImageLook {
		if t.def.MinImageTime > 0 && imageTime < t.def.MinImageTime {
			return t.finish(StatusFailed, now)
		}
		return t.finish(StatusSuccess, now)
	}
	return StatusRunning
}

// Status returns the latest evaluated status.
func (t *FocusTrial) Status() Status { return t.status }

// Focus returns the current focus.
func (t *FocusTrial) Focus() Focus { return t.focus }

// Spent returns the accumulated time for f.
func (t *FocusTrial) Spent(f Focus) time.Duration {
	if f < Away || f > Right {
		return 0
	}
	return t.spent[f]
}

// FirstImageLook returns when the child first looked at either image.
func (t *FocusTrial) FirstImageLook() (time.Time, bool) {
	return t.firstImageLookAt, t.looked
}

// Log returns a copy of the transition log.
func (t *FocusTrial) Log() []Row {
	out := make([]Row, len(t.log))
	copy(out, t.log)
	return out
}

// Snapshot captures the state for rendering as of the last Apply.
func (t *FocusTrial) Snapshot() Snapshot {
	return Snapshot{
		Trial:     t.def.Name,
		Focus:     t.focus,
		Away:      t.spent[Away],
		Left:      t.spent[Left],
		Right:     t.spent[Right],
		ImageTime: t.imageTime(),
		LookTime:  t.lookTime(t.lastChangeAt),
		Looked:    t.looked,
		Elapsed:   t.lastChangeAt.Sub(t.startedAt),
		Status:    t.status,
		Rows:      len(t.log),
	}
}

func (t *FocusTrial) imageTime() time.Duration {
	return t.spent[Left] + t.spent[Right]
}

func (t *FocusTrial) lookTime(now time.Time) time.Duration {
	if !t.looked {
		return 0
	}
	return now.Sub(t.firstImageLookAt)
}

func (t *FocusTrial) finish(status Status, now time.Time) Status {
	t.appendRow(EventFinish, now)
	t.status = status
	return status
}

func (t *FocusTrial) appendRow(event string, now time.Time) {
	since := now.Sub(t.lastRowAt)
	if since < 0 {
		since = 0
	}
	t.lastRowAt = now
	t.log = append(t.log, Row{
		Event:     event,
		SinceLast: since,
		Away:      t.spent[Away],
		Left:      t.spent[Left],
		Right:     t.spent[Right],
	})
}
