// Package resolve maps changelog records onto the content blob each one
// must reference.
package resolve

import (
	"fmt"

	"github.com/systemshift/dokuwiki2git/internal/changelog"
	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// Status tags the outcome of Resolve.
type Status int

const (
	// NotApplicable is returned for deletions; nothing was looked up.
	NotApplicable Status = iota
	// Found means the historical snapshot exists.
	Found
	// FoundAtCurrent means the snapshot is missing and the live file was
	// used instead. Only the last record of an object resolves this way.
	FoundAtCurrent
	// Missing means no content was found; Source holds a placeholder.
	Missing
)

func (s Status) String() string {
	switch s {
	case NotApplicable:
		return "not-applicable"
	case Found:
		return "found"
	case FoundAtCurrent:
		return "found-at-current"
	case Missing:
		return "missing"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Resolved is the content chosen for one record.
type Resolved struct {
	Status   Status
	Source   Source
	Snapshot string // expected snapshot, relative to the data root
	Note     string // advisory text for FoundAtCurrent and Missing
}

// Placeholder returns the content committed in place of a missing snapshot.
func Placeholder(snapshot string) []byte {
	return []byte(fmt.Sprintf("dokuwiki2git: history snapshot %s is missing\n", snapshot))
}

// Resolver looks records up in one data directory.
type Resolver struct {
	layout *wiki.Layout
}

// New creates a Resolver for layout.
func New(layout *wiki.Layout) *Resolver {
	return &Resolver{layout: layout}
}

// Resolve picks the content for rec. Only existence checks touch the
// filesystem; the content itself is read later through Source.
//
// The attic snapshot wins. When it is missing, the last record of an object
// falls back to the live file, since DokuWiki does not copy the current
// revision into the attic. Anything else degrades to a placeholder.
func (r *Resolver) Resolve(rec changelog.Record) Resolved {
	if rec.Type == changelog.Delete {
		return Resolved{Status: NotApplicable}
	}

	snapshot := wiki.Snapshot(rec.Kind, rec.Name, rec.Timestamp)
	if r.layout.Exists(snapshot) {
		return Resolved{
			Status:   Found,
			Source:   r.snapshotSource(rec.Kind, snapshot),
			Snapshot: snapshot,
		}
	}

	if rec.Last {
		live := wiki.Live(rec.Kind, rec.Name)
		if r.layout.Exists(live) {
			return Resolved{
				Status:   FoundAtCurrent,
				Source:   Raw(r.layout.Abs(live)),
				Snapshot: snapshot,
				Note:     fmt.Sprintf("current version %s substituted for missing snapshot %s", live, snapshot),
			}
		}
	}

	return Resolved{
		Status:   Missing,
		Source:   Inline(Placeholder(snapshot)),
		Snapshot: snapshot,
		Note:     fmt.Sprintf("snapshot %s is missing", snapshot),
	}
}

func (r *Resolver) snapshotSource(k wiki.Kind, rel string) Source {
	if k == wiki.Page {
		return Gzip(r.layout.Abs(rel))
	}
	return Raw(r.layout.Abs(rel))
}
