// internal/config/config.go
//
// This package loads the trial set: which trials run, in what order, with
// which thresholds, and where their logs are written.
// Settings come from looktime.yaml, with .env and LOOKTIME_* variables
// supplying defaults that command-line flags can override.

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/looktime/internal/trial"
)

const (
	// DefaultFileName is looked up in the working directory when no path is given.
	DefaultFileName = "looktime.yaml"

	// DefaultPollInterval is how often a running trial is re-evaluated.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultOutputDir receives the CSV logs and the session journal.
	DefaultOutputDir = "data"

	EnvConfig    = "LOOKTIME_CONFIG"
	EnvOutputDir = "LOOKTIME_OUTPUT_DIR"
)

const defaultTrialSetYAML = `# looktime trial set
version: 1

# How often a running trial is re-evaluated.
poll_interval: 50ms

# Where CSV logs and looktime.log are written (relative to this file).
output_dir: data

# Write a column header line at the top of every CSV log.
csv_header: false

# Shown before every trial that has no prompt of its own.
default_prompt: |-
  A child will be presented with two images

  Press the LEFT ARROW KEY when the child looks at the LEFT IMAGE

  Press the RIGHT ARROW KEY when the child looks at the RIGHT IMAGE

  Press the UP ARROW KEY when the child looks AWAY from both images.

# Trials run in order. Each needs max_image_time and/or
# max_time_after_first_image_look.
#   max_image_time: cap on combined left+right looking
#   max_time_after_first_image_look: cap on time since the first look at an image
#   min_image_time: looking floor checked when the after-look cap fires
trials:
  - name: Familiarization 1
    max_image_time: 20s
  - name: Test 1a
    max_time_after_first_image_look: 20s
    min_image_time: 1s
  - name: Test 1b
    max_time_after_first_image_look: 20s
    min_image_time: 1s
  - name: Familiarization 2
    max_image_time: 20s
  - name: Test 2a
    max_time_after_first_image_look: 20s
    min_image_time: 1s
  - name: Test 2b
    max_time_after_first_image_look: 20s
    min_image_time: 1s
`

// TrialConfig declares one trial inside looktime.yaml.
type TrialConfig struct {
	Name                       string        `yaml:"name"`
	Prompt                     string        `yaml:"prompt,omitempty"`
	MaxImageTime               time.Duration `yaml:"max_image_time,omitempty"`
	MaxTimeAfterFirstImageLook time.Duration `yaml:"max_time_after_first_image_look,omitempty"`
	MinImageTime               time.Duration `yaml:"min_image_time,omitempty"`
}

// TrialSet models looktime.yaml.
type TrialSet struct {
	Version       int           `yaml:"version"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty"`
	OutputDir     string        `yaml:"output_dir,omitempty"`
	CSVHeader     bool          `yaml:"csv_header,omitempty"`
	DefaultPrompt string        `yaml:"default_prompt,omitempty"`
	Trials        []TrialConfig `yaml:"trials"`
}

// Config is a loaded and validated trial set.
type Config struct {
	// Path is the file the set was read from; empty for the built-in set.
	Path string

	// BaseDir resolves relative paths inside the file.
	BaseDir string

	Set TrialSet
}

// LoadEnv reads dir/.env into the process environment. Existing variables
// win and a missing file is not an error.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(err, "config: load env file", goerr.V("path", path))
	}
	return nil
}

// ResolvePath picks the trial-set file: the explicit flag, then
// LOOKTIME_CONFIG, then looktime.yaml in dir if present. An empty result
// selects the built-in set.
func ResolvePath(flag, dir string) string {
	if p := strings.TrimSpace(flag); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	candidate := filepath.Join(dir, DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Load reads and validates a trial set. An empty path loads the built-in set,
// rooted at baseDir.
func Load(path, baseDir string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return parse([]byte(defaultTrialSetYAML), "", baseDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "config: read trial set", goerr.V("path", path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return parse(data, abs, filepath.Dir(abs))
}

func parse(data []byte, path, baseDir string) (*Config, error) {
	var parsed TrialSet
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, goerr.Wrap(err, "config: parse trial set", goerr.V("path", path))
	}
	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return nil, goerr.Wrap(err, "config: invalid trial set", goerr.V("path", path))
	}
	return &Config{Path: path, BaseDir: baseDir, Set: parsed}, nil
}

// WriteDefault writes the built-in trial set to path. An existing file is
// left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return goerr.New("config: file already exists", goerr.V("path", path))
		} else if !errors.Is(err, fs.ErrNotExist) {
			return goerr.Wrap(err, "config: stat", goerr.V("path", path))
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return goerr.Wrap(err, "config: ensure dir", goerr.V("dir", dir))
		}
	}
	if err := os.WriteFile(path, []byte(defaultTrialSetYAML), 0o644); err != nil {
		return goerr.Wrap(err, "config: write trial set", goerr.V("path", path))
	}
	return nil
}

// Definitions returns the trials in run order, with the default prompt
// filled in.
func (c *Config) Definitions() []trial.Definition {
	defs := make([]trial.Definition, 0, len(c.Set.Trials))
	for _, tc := range c.Set.Trials {
		prompt := tc.Prompt
		if strings.TrimSpace(prompt) == "" {
			prompt = c.Set.DefaultPrompt
		}
		defs = append(defs, trial.Definition{
			Name:                       tc.Name,
			Prompt:                     prompt,
			MaxImageTime:               tc.MaxImageTime,
			MaxTimeAfterFirstImageLook: tc.MaxTimeAfterFirstImageLook,
			MinImageTime:               tc.MinImageTime,
		})
	}
	return defs
}

// PollInterval returns the trial re-evaluation interval.
func (c *Config) PollInterval() time.Duration {
	if c.Set.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.Set.PollInterval
}

// OutputDir returns where logs are written: LOOKTIME_OUTPUT_DIR when set,
// otherwise output_dir resolved against BaseDir.
func (c *Config) OutputDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvOutputDir)); dir != "" {
		return dir
	}
	return resolvePath(c.BaseDir, c.Set.OutputDir)
}

// CSVHeader reports whether logs start with a header line.
func (c *Config) CSVHeader() bool {
	return c.Set.CSVHeader
}

func (ts *TrialSet) applyDefaults() {
	if ts.Version == 0 {
		ts.Version = 1
	}
	if ts.PollInterval == 0 {
		ts.PollInterval = DefaultPollInterval
	}
	if strings.TrimSpace(ts.OutputDir) == "" {
		ts.OutputDir = DefaultOutputDir
	}
}

func (ts *TrialSet) normalize() {
	ts.OutputDir = strings.TrimSpace(ts.OutputDir)
	ts.DefaultPrompt = strings.TrimRight(ts.DefaultPrompt, "\n")
	for i := range ts.Trials {
		ts.Trials[i].Name = strings.TrimSpace(ts.Trials[i].Name)
		ts.Trials[i].Prompt = strings.TrimRight(ts.Trials[i].Prompt, "\n")
	}
}

func (ts *TrialSet) validate() error {
	if ts.Version != 1 {
		return goerr.New("unsupported version", goerr.V("version", ts.Version))
	}
	if ts.PollInterval < time.Millisecond {
		return goerr.New("poll_interval must be at least 1ms", goerr.V("poll_interval", ts.PollInterval))
	}
	defs := make([]trial.Definition, 0, len(ts.Trials))
	for _, tc := range ts.Trials {
		defs = append(defs, trial.Definition{
			Name:                       tc.Name,
			MaxImageTime:               tc.MaxImageTime,
			MaxTimeAfterFirstImageLook: tc.MaxTimeAfterFirstImageLook,
			MinImageTime:               tc.MinImageTime,
		})
	}
	return trial.ValidateAll(defs)
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) || base == "" {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
