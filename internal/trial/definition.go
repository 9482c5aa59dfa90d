package trial

import (
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrNeverEnds marks a definition that sets neither termination cap.
var ErrNeverEnds = errors.New("trial never ends")

// Kind groups definitions by which thresholds they use.
type Kind string

const (
	// KindFamiliarization ends on a raw image-time cap.
	KindFamiliarization Kind = "familiarization"
	// KindTest ends on the after-look cap, usually with a looking floor.
	KindTest Kind = "test"
	// KindMixed sets both caps; the image-time cap is always checked first.
	KindMixed Kind = "mixed"
)

// Definition is one configured trial. A zero duration means the threshold is
// not set.
type Definition struct {
	Name   string
	Prompt string

	// MaxImageTime caps combined left+right looking.
	MaxImageTime time.Duration
	// MaxTimeAfterFirstImageLook caps wall time since the first look at
	// either image.
	MaxTimeAfterFirstImageLook time.Duration
	// MinImageTime is the looking floor checked when the after-look cap fires.
	MinImageTime time.Duration
}

// Kind classifies the definition by its thresholds.
func (d Definition) Kind() Kind {
	switch {
	case d.MaxImageTime > 0 && d.MaxTimeAfterFirstImageLook > 0:
		return KindMixed
	case d.MaxImageTime > 0:
		return KindFamiliarization
	default:
		return KindTest
	}
}

// Validate rejects definitions that could never terminate or carry
// nonsensical thresholds.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return goerr.New("trial name is required")
	}
	thresholds := []struct {
		label string
		value time.Duration
	}{
		{"max_image_time", d.MaxImageTime},
		{"max_time_after_first_image_look", d.MaxTimeAfterFirstImageLook},
		{"min_image_time", d.MinImageTime},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			return goerr.New("threshold must not be negative",
				goerr.V("trial", d.Name), goerr.V("threshold", th.label), goerr.V("value", th.value))
		}
	}
	if d.MaxImageTime == 0 && d.MaxTimeAfterFirstImageLook == 0 {
		return goerr.Wrap(ErrNeverEnds, "no termination threshold set", goerr.V("trial", d.Name))
	}
	return nil
}

// ValidateAll checks every definition up front and requires unique names,
// since names key the output files.
func ValidateAll(defs []Definition) error {
	if len(defs) == 0 {
		return goerr.New("no trials defined")
	}
	seen := make(map[string]int, len(defs))
	for i, d := range defs {
		if err := d.Validate(); err != nil {
			return goerr.Wrap(err, "invalid trial", goerr.V("index", i))
		}
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if prev, ok := seen[key]; ok {
			return goerr.New("duplicate trial name",
				goerr.V("trial", d.Name), goerr.V("index", i), goerr.V("previous", prev))
		}
		seen[key] = i
	}
	return nil
}
