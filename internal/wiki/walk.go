package wiki

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Changelog is one per-object changelog file.
type Changelog struct {
	Kind Kind
	Name string // object name derived from the file path
	Rel  string // path relative to the data root
	Path string // filesystem path
}

// Changelogs lists every changelog file for kind, sorted by path.
// A missing metadata directory yields no files.
func (l *Layout) Changelogs(k Kind) ([]Changelog, error) {
	rels, err := l.glob(MetaDir(k), "**/*"+changelogExt)
	if err != nil {
		return nil, fmt.Errorf("list %s changelogs: %w", k, err)
	}
	out := make([]Changelog, 0, len(rels))
	for _, rel := range rels {
		full := path.Join(MetaDir(k), rel)
		out = append(out, Changelog{
			Kind: k,
			Name: NameFromChangelog(rel),
			Rel:  full,
			Path: l.Abs(full),
		})
	}
	return out, nil
}

// LiveFiles lists every regular file in the live store for kind, as paths
// relative to the data root, sorted.
func (l *Layout) LiveFiles(k Kind) ([]string, error) {
	rels, err := l.glob(LiveDir(k), "**")
	if err != nil {
		return nil, fmt.Errorf("list %s store: %w", k, err)
	}
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = path.Join(LiveDir(k), rel)
	}
	return out, nil
}

// HasDir reports whether the directory rel exists under the root.
func (l *Layout) HasDir(rel string) bool {
	info, err := os.Stat(l.Abs(rel))
	return err == nil && info.IsDir()
}

// Exists reports whether the regular file rel exists under the root.
func (l *Layout) Exists(rel string) bool {
	info, err := os.Stat(l.Abs(rel))
	return err == nil && info.Mode().IsRegular()
}

func (l *Layout) glob(dir, pattern string) ([]string, error) {
	if !l.HasDir(dir) {
		return nil, nil
	}
	fsys := os.DirFS(l.Abs(dir))
	matches, err := doublestar.Glob(fsys, pattern,
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	)
	if err != nil {
		return nil, err
	}
	// WithFilesOnly admits any non-directory; keep regular files only.
	files := matches[:0]
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
