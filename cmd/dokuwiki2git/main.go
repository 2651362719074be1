package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/systemshift/dokuwiki2git/internal/config"
	"github.com/systemshift/dokuwiki2git/internal/convert"
	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// Exit statuses.
const (
	exitOK     = 0
	exitUsage  = 1
	exitConfig = 2
	exitFailed = 3
)

// Options represents command line options.
type Options struct {
	Output  string `short:"o" long:"output" default:"dokuwiki.fast-import" description:"fast-import stream destination, - for stdout"`
	Quiet   bool   `short:"q" long:"quiet" description:"only report warnings and errors"`
	Verbose bool   `short:"v" long:"verbose" description:"report debug detail"`

	Branch         string `long:"branch" default:"master" description:"branch receiving the history"`
	Email          string `long:"email" default:"dokuwiki2git@localhost" description:"email address used for every identity"`
	CommitterName  string `long:"committer-name" description:"committer name for history commits (default: the author)"`
	CommitterEmail string `long:"committer-email" description:"committer email for history commits (default: --email)"`

	Jobs          int  `short:"j" long:"jobs" default:"1" description:"changelog files parsed in parallel"`
	SkipMalformed bool `long:"skip-malformed" description:"skip malformed changelog lines instead of aborting"`
	DedupeBlobs   bool `long:"dedupe-blobs" description:"write identical content once as a marked blob"`
	NoCatchAll    bool `long:"no-catch-all" description:"omit the final commits of the live page and media stores"`

	Args struct {
		DataDir string `positional-arg-name:"data-dir" description:"DokuWiki data directory"`
	} `positional-args:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "dokuwiki2git"
	parser.Usage = "[OPTIONS] <data-dir>"

	if _, err := parser.ParseArgs(args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stderr, ferr.Message)
			return exitOK
		}
		fmt.Fprintf(stderr, "dokuwiki2git: %v\n", err)
		parser.WriteHelp(stderr)
		return exitUsage
	}
	if opts.Args.DataDir == "" {
		parser.WriteHelp(stderr)
		return exitUsage
	}

	level, err := config.Verbosity(opts.Quiet, opts.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "dokuwiki2git: %v\n", err)
		return exitUsage
	}

	cfg := config.Default()
	cfg.DataDir = opts.Args.DataDir
	cfg.Output = opts.Output
	cfg.Branch = opts.Branch
	cfg.Email = opts.Email
	cfg.CommitterName = opts.CommitterName
	cfg.CommitterEmail = opts.CommitterEmail
	cfg.Jobs = opts.Jobs
	cfg.SkipMalformed = opts.SkipMalformed
	cfg.DedupeBlobs = opts.DedupeBlobs
	cfg.SkipCatchAll = opts.NoCatchAll
	cfg.LogLevel = level
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "dokuwiki2git: %v\n", err)
		return exitConfig
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(cfg.LogLevel)
	log := logger.WithField("run_id", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("action", "convert").Debugf("reading %s", cfg.DataDir)
	if _, err := convert.New(cfg, log).Run(ctx); err != nil {
		log.WithError(err).Error("conversion failed")
		if errors.Is(err, wiki.ErrNotDataDir) {
			return exitConfig
		}
		return exitFailed
	}
	return exitOK
}
