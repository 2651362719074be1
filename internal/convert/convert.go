// Package convert runs the whole DokuWiki to fast-import conversion.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/systemshift/dokuwiki2git/internal/changelog"
	"github.com/systemshift/dokuwiki2git/internal/config"
	"github.com/systemshift/dokuwiki2git/internal/safefile"
	"github.com/systemshift/dokuwiki2git/internal/stream"
	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// Summary reports what one run produced.
type Summary struct {
	changelog.Stats
	Commits     int
	Missing     int
	Substituted int
	Skipped     int // malformed lines dropped with --skip-malformed
	Blobs       int // distinct blobs with --dedupe-blobs
}

// Warnings is the number of warning-level conditions in the run.
func (s Summary) Warnings() int {
	return s.Missing + s.Skipped
}

// Converter holds one run's configuration.
type Converter struct {
	cfg config.Config
	log logrus.FieldLogger
	now func() time.Time
}

// New creates a Converter. cfg should already be validated.
func New(cfg config.Config, log logrus.FieldLogger) *Converter {
	return &Converter{cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the clock that stamps the catch-all commits.
func (c *Converter) WithClock(now func() time.Time) *Converter {
	c.now = now
	return c
}

// Run converts the data directory into the configured output. Nothing is
// written until the changelogs have been read, and a file output only
// appears once the whole stream was written.
func (c *Converter) Run(ctx context.Context) (Summary, error) {
	ops, sum, err := c.build(ctx)
	if err != nil {
		return sum, err
	}
	if c.cfg.Output == config.Stdout {
		return c.write(ctx, os.Stdout, ops, sum)
	}

	out, err := safefile.Create(c.cfg.Output, 0o644)
	if err != nil {
		return sum, fmt.Errorf("open output %s: %w", c.cfg.Output, err)
	}
	defer out.Abort()

	sum, err = c.write(ctx, out, ops, sum)
	if err != nil {
		return sum, err
	}
	if err := out.Commit(); err != nil {
		return sum, fmt.Errorf("write output %s: %w", c.cfg.Output, err)
	}
	c.log.WithField("action", "write_output").Infof("stream written to %s", c.cfg.Output)
	return sum, nil
}

// Convert writes the import stream to w.
func (c *Converter) Convert(ctx context.Context, w io.Writer) (Summary, error) {
	ops, sum, err := c.build(ctx)
	if err != nil {
		return sum, err
	}
	return c.write(ctx, w, ops, sum)
}

// build reads every changelog and turns it into operations.
func (c *Converter) build(ctx context.Context) ([]stream.Op, Summary, error) {
	var sum Summary

	layout, err := wiki.Open(c.cfg.DataDir)
	if err != nil {
		return nil, sum, err
	}

	var skipped atomic.Int64
	records, err := changelog.Aggregate(ctx, layout, changelog.CollectOptions{
		Jobs: c.cfg.Jobs,
		Parse: changelog.ParseOptions{
			SkipMalformed: c.cfg.SkipMalformed,
			OnSkip: func(perr *changelog.ParseError) {
				skipped.Add(1)
				c.log.WithField("action", "parse_changelog").
					WithField("file", perr.File).
					WithField("line", perr.Line+1).
					Warnf("skipping malformed line: %s", perr.Reason)
			},
		},
	})
	if err != nil {
		return nil, sum, fmt.Errorf("read changelogs: %w", err)
	}
	sum.Stats = changelog.Summarize(records)
	sum.Skipped = int(skipped.Load())
	c.log.Infof("%d changelog entries for %d pages found", sum.PageEntries, sum.Pages)
	c.log.Infof("%d changelog entries for %d media files found", sum.MediaEntries, sum.Media)

	emitter := stream.NewEmitter(layout, c.emitOptions(), c.log)
	ops, stats, err := emitter.Emit(ctx, records)
	if err != nil {
		return nil, sum, fmt.Errorf("build stream: %w", err)
	}
	sum.Commits = stats.Commits
	sum.Missing = stats.Missing
	sum.Substituted = stats.Substituted
	c.log.Infof("%d commits queued", sum.Commits)
	if sum.Substituted > 0 {
		c.log.Infof("%d current versions substituted for missing snapshots", sum.Substituted)
	}
	return ops, sum, nil
}

func (c *Converter) write(ctx context.Context, w io.Writer, ops []stream.Op, sum Summary) (Summary, error) {
	ser := stream.NewSerializer(c.cfg.DedupeBlobs)
	if err := ser.Write(ctx, w, ops); err != nil {
		return sum, fmt.Errorf("write stream: %w", err)
	}
	sum.Blobs = ser.Blobs()
	if c.cfg.DedupeBlobs {
		c.log.Infof("%d distinct blobs written", sum.Blobs)
	}
	if n := sum.Warnings(); n > 0 {
		c.log.Warnf("%d warnings", n)
	}
	return sum, nil
}

func (c *Converter) emitOptions() stream.Options {
	opts := stream.Options{
		Branch:       c.cfg.Branch,
		Email:        c.cfg.Email,
		SkipCatchAll: c.cfg.SkipCatchAll,
		Now:          c.now,
	}
	if c.cfg.HasCommitter() {
		committer := stream.Identity{Name: c.cfg.CommitterName, Email: c.cfg.CommitterEmail}
		if committer.Name == "" {
			committer.Name = stream.ServiceName
		}
		if committer.Email == "" {
			committer.Email = opts.Email
		}
		opts.Committer = &committer
	}
	return opts
}
