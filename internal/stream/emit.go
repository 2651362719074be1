package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/systemshift/dokuwiki2git/internal/changelog"
	"github.com/systemshift/dokuwiki2git/internal/resolve"
	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

const (
	// ServiceName is the identity of the converter itself.
	ServiceName = "dokuwiki2git"
	// DefaultEmail stands in for addresses DokuWiki never recorded.
	DefaultEmail = "dokuwiki2git@localhost"
	// DefaultBranch receives the whole history.
	DefaultBranch = "master"

	emptyMessage = "Empty changelog entry"
)

// Every commit is stamped with this offset.
var commitZone = time.FixedZone("-0800", -8*60*60)

// Commit message metadata keys.
const (
	keyAuthor       = "Dokuwiki-Author"
	keyChangeType   = "Dokuwiki-Change-Type"
	keyExtra        = "Dokuwiki-Extra"
	keyIP           = "Dokuwiki-IP"
	keyKind         = "Dokuwiki-Kind"
	keyNote         = "Dokuwiki-Note"
	keyObject       = "Dokuwiki-Object"
	keyRevertTarget = "Dokuwiki-Revert-Target"
	keySnapshot     = "Dokuwiki-Snapshot"
	keyWarning      = "Dokuwiki-Warning"
)

// Options configures an Emitter. Zero values fall back to the defaults.
type Options struct {
	Branch string
	// Email is used for every identity.
	Email string
	// Committer overrides the committer of every history commit. When nil
	// the committer mirrors the author.
	Committer *Identity
	// SkipCatchAll omits the two trailing commits of the live stores.
	SkipCatchAll bool
	// Now stamps the catch-all commits.
	Now func() time.Time
}

// Stats summarizes one Emit call.
type Stats struct {
	Commits     int
	Missing     int
	Substituted int
}

// Emitter turns sorted changelog records into import operations.
type Emitter struct {
	layout   *wiki.Layout
	resolver *resolve.Resolver
	opts     Options
	log      logrus.FieldLogger
}

// NewEmitter creates an Emitter reading content from layout.
func NewEmitter(layout *wiki.Layout, opts Options, log logrus.FieldLogger) *Emitter {
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	if opts.Email == "" {
		opts.Email = DefaultEmail
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Emitter{
		layout:   layout,
		resolver: resolve.New(layout),
		opts:     opts,
		log:      log,
	}
}

// Ref returns the full ref name commits are written to.
func (e *Emitter) Ref() string {
	return "refs/heads/" + e.opts.Branch
}

// Emit builds the full operation sequence for records, which must already
// be in chronological order.
func (e *Emitter) Emit(ctx context.Context, records []changelog.Record) ([]Op, Stats, error) {
	var stats Stats
	ops := make([]Op, 0, len(records)+4)
	ops = append(ops, Reset{Ref: e.Ref()})

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		res := e.resolver.Resolve(rec)
		switch res.Status {
		case resolve.Missing:
			stats.Missing++
			e.log.WithFields(logrus.Fields{
				"action":    "resolve_content",
				"object":    rec.Name,
				"kind":      rec.Kind.String(),
				"timestamp": rec.Timestamp,
				"changelog": rec.SourceFile,
			}).Warnf("history snapshot %s is missing, committing placeholder", res.Snapshot)
		case resolve.FoundAtCurrent:
			stats.Substituted++
			e.log.WithFields(logrus.Fields{
				"action": "resolve_content",
				"object": rec.Name,
				"kind":   rec.Kind.String(),
			}).Debug(res.Note)
		}
		ops = append(ops, e.historyCommit(rec, res))
		stats.Commits++
	}

	if !e.opts.SkipCatchAll {
		for _, k := range []wiki.Kind{wiki.Media, wiki.Page} {
			c, err := e.catchAll(k)
			if err != nil {
				return nil, stats, err
			}
			ops = append(ops, c)
			stats.Commits++
		}
	}

	ops = append(ops, Done{})
	return ops, stats, nil
}

func (e *Emitter) historyCommit(rec changelog.Record, res resolve.Resolved) Commit {
	path := wiki.RepoPath(rec.Kind, rec.Name)

	var change FileChange
	switch rec.Type {
	case changelog.Create, changelog.Edit, changelog.MinorEdit, changelog.Revert:
		change = Modify{Path: path, Mode: ModeRegular, Source: res.Source}
	case changelog.Delete:
		change = Delete{Path: path}
	default:
		// ParseFile rejects unknown types, so reaching here is a bug.
		panic(fmt.Sprintf("stream: unexpected change type %q for %s", rec.Type, rec.Name))
	}

	name := rec.Author
	if name == "" {
		name = ServiceName
	}
	author := Identity{Name: name, Email: e.opts.Email}
	committer := author
	if e.opts.Committer != nil {
		committer = *e.opts.Committer
	}

	return Commit{
		Ref:       e.Ref(),
		Author:    author,
		Committer: committer,
		When:      time.Unix(rec.Timestamp, 0).In(commitZone),
		Message:   commitMessage(rec, res),
		Changes:   []FileChange{change},
	}
}

// commitMessage renders the change summary followed by sorted metadata.
func commitMessage(rec changelog.Record, res resolve.Resolved) string {
	meta := map[string]string{
		keyAuthor:     rec.Author,
		keyChangeType: string(rec.Type),
		keyIP:         rec.IP,
		keyKind:       rec.Kind.String(),
		keyObject:     rec.Name,
	}
	if rec.Type == changelog.Revert {
		meta[keyRevertTarget] = rec.Extra
	} else {
		meta[keyExtra] = rec.Extra
	}
	if res.Status != resolve.NotApplicable {
		meta[keySnapshot] = res.Snapshot
	}
	switch res.Status {
	case resolve.FoundAtCurrent:
		meta[keyNote] = res.Note
	case resolve.Missing:
		meta[keyWarning] = res.Note
	}

	summary := rec.Message
	if summary == "" {
		summary = emptyMessage
	}
	return summary + "\n\n" + renderMeta(meta)
}

// renderMeta writes "Key: Value" lines in key order. Empty values are left out.
func renderMeta(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k, v := range meta {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(meta[k], "\n", " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *Emitter) catchAll(k wiki.Kind) (Commit, error) {
	files, err := e.layout.LiveFiles(k)
	if err != nil {
		return Commit{}, err
	}
	if len(files) == 0 {
		e.log.WithField("action", "catch_all").
			Infof("no files found in %s store", wiki.LiveDir(k))
	}

	changes := make([]FileChange, 0, len(files))
	for _, rel := range files {
		changes = append(changes, Modify{
			Path:   rel,
			Mode:   ModeRegular,
			Source: resolve.Raw(e.layout.Abs(rel)),
		})
	}

	message := "Add all current pages\n"
	if k == wiki.Media {
		message = "Add all current media files\n"
	}
	service := Identity{Name: ServiceName, Email: e.opts.Email}
	return Commit{
		Ref:       e.Ref(),
		Author:    service,
		Committer: service,
		When:      e.opts.Now().In(commitZone),
		Message:   message,
		Changes:   changes,
	}, nil
}
