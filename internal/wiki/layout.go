// Package wiki describes the on-disk layout of a DokuWiki data directory.
package wiki

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotDataDir is returned when the input root is not a DokuWiki data directory.
var ErrNotDataDir = errors.New("not a dokuwiki data directory")

// SentinelFile must exist in every data directory.
const SentinelFile = "_dummy"

// Kind is one of the two independent object namespaces.
type Kind int

const (
	Page Kind = iota
	Media
)

func (k Kind) String() string {
	switch k {
	case Page:
		return "page"
	case Media:
		return "media"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Directory names relative to the data root, per kind.
type dirs struct {
	meta  string // changelogs
	attic string // historical snapshots
	live  string // current content
}

var kindDirs = map[Kind]dirs{
	Page:  {meta: "meta", attic: "attic", live: "pages"},
	Media: {meta: "media_meta", attic: "media_attic", live: "media"},
}

const (
	changelogExt = ".changes"
	pageExt      = ".txt"
	pageAtticExt = ".txt.gz"
)

// Layout resolves object names to paths inside one data directory.
// Relative paths returned by Layout always use forward slashes so they are
// stable across platforms; Abs maps them onto the local filesystem.
type Layout struct {
	root string
}

// Open validates root and returns its Layout.
func Open(root string) (*Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotDataDir, root)
	}
	sentinel := filepath.Join(root, SentinelFile)
	if _, err := os.Stat(sentinel); err != nil {
		return nil, fmt.Errorf("%w: missing sentinel %s", ErrNotDataDir, sentinel)
	}
	return &Layout{root: root}, nil
}

// Root returns the data directory.
func (l *Layout) Root() string {
	return l.root
}

// Abs maps a slash-separated path relative to the root onto the filesystem.
func (l *Layout) Abs(rel string) string {
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

// MetaDir returns the changelog directory for kind, relative to the root.
func MetaDir(k Kind) string { return kindDirs[k].meta }

// AtticDir returns the snapshot directory for kind, relative to the root.
func AtticDir(k Kind) string { return kindDirs[k].attic }

// LiveDir returns the current-content directory for kind, relative to the root.
func LiveDir(k Kind) string { return kindDirs[k].live }

// nameToPath converts a colon-separated object name into a slash path.
func nameToPath(name string) string {
	return strings.ReplaceAll(name, ":", "/")
}

// NameFromChangelog derives the object name from a changelog path relative
// to the kind's metadata directory: "wiki/syntax.changes" -> "wiki:syntax".
func NameFromChangelog(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), changelogExt)
	return strings.ReplaceAll(rel, "/", ":")
}

// splitExt splits the final segment of a media path at its last dot.
// The extension is returned without the dot.
func splitExt(p string) (base, ext string) {
	dir, file := path.Split(p)
	i := strings.LastIndex(file, ".")
	if i <= 0 {
		return p, ""
	}
	return dir + file[:i], file[i+1:]
}

// Snapshot returns the expected attic path of name at timestamp ts.
//
//	page  wiki:syntax    -> attic/wiki/syntax.<ts>.txt.gz
//	media wiki:logo.png  -> media_attic/wiki/logo.<ts>.png
func Snapshot(k Kind, name string, ts int64) string {
	p := nameToPath(name)
	stamp := strconv.FormatInt(ts, 10)
	if k == Page {
		return path.Join(AtticDir(k), p+"."+stamp+pageAtticExt)
	}
	base, ext := splitExt(p)
	if ext == "" {
		return path.Join(AtticDir(k), base+"."+stamp)
	}
	return path.Join(AtticDir(k), base+"."+stamp+"."+ext)
}

// Live returns the current-content path of name, relative to the root.
func Live(k Kind, name string) string {
	p := nameToPath(name)
	if k == Page {
		p += pageExt
	}
	return path.Join(LiveDir(k), p)
}

// RepoPath returns the path name occupies in the generated repository.
// The repository mirrors the live stores, so it equals Live.
func RepoPath(k Kind, name string) string {
	return Live(k, name)
}
