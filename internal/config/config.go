// Package config holds the settings of one conversion run.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/systemshift/dokuwiki2git/internal/stream"
)

// DefaultOutput is the stream file written when no output is given.
const DefaultOutput = "dokuwiki.fast-import"

// Stdout selects standard output as the destination.
const Stdout = "-"

// Config is the validated input of one conversion.
type Config struct {
	DataDir string
	Output  string

	Branch         string
	Email          string
	CommitterName  string
	CommitterEmail string

	Jobs          int
	SkipMalformed bool
	DedupeBlobs   bool
	SkipCatchAll  bool

	LogLevel logrus.Level
}

// Default returns the settings used when no flag overrides them.
func Default() Config {
	return Config{
		Output:   DefaultOutput,
		Branch:   stream.DefaultBranch,
		Email:    stream.DefaultEmail,
		Jobs:     1,
		LogLevel: logrus.InfoLevel,
	}
}

// Verbosity maps the quiet/verbose switches onto a log level.
func Verbosity(quiet, verbose bool) (logrus.Level, error) {
	switch {
	case quiet && verbose:
		return 0, errors.New("--quiet and --verbose are mutually exclusive")
	case quiet:
		return logrus.WarnLevel, nil
	case verbose:
		return logrus.DebugLevel, nil
	}
	return logrus.InfoLevel, nil
}

// HasCommitter reports whether a committer override was configured.
func (c Config) HasCommitter() bool {
	return c.CommitterName != "" || c.CommitterEmail != ""
}

// Validate reports the first setting that would make the run fail.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data directory is required")
	}
	if strings.TrimSpace(c.Output) == "" {
		return errors.New("output must not be empty")
	}
	if err := validBranch(c.Branch); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	return nil
}

// validBranch applies the subset of git-check-ref-format rules that a
// fast-import consumer rejects most often.
func validBranch(b string) error {
	switch {
	case b == "":
		return errors.New("branch must not be empty")
	case strings.ContainsAny(b, " ~^:?*[\\\t\n"):
		return fmt.Errorf("invalid branch name %q", b)
	case strings.Contains(b, ".."), strings.Contains(b, "@{"):
		return fmt.Errorf("invalid branch name %q", b)
	case strings.HasPrefix(b, "/"), strings.HasSuffix(b, "/"), strings.HasSuffix(b, ".lock"):
		return fmt.Errorf("invalid branch name %q", b)
	}
	return nil
}
