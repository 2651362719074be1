package stream

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/dokuwiki2git/internal/changelog"
	"github.com/systemshift/dokuwiki2git/internal/resolve"
	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

var fixedNow = time.Unix(1700000000, 0)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func writeGzip(t *testing.T, root, rel, content string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	writeFile(t, root, rel, buf.Bytes())
}

func newLayout(t *testing.T) (*wiki.Layout, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, wiki.SentinelFile, nil)
	l, err := wiki.Open(root)
	require.NoError(t, err)
	return l, root
}

func newEmitter(t *testing.T, l *wiki.Layout, opts Options) (*Emitter, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return NewEmitter(l, opts, logger), hook
}

func commits(ops []Op) []Commit {
	var out []Commit
	for _, op := range ops {
		if c, ok := op.(Commit); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestEmit_PageHistory(t *testing.T) {
	l, root := newLayout(t)
	writeGzip(t, root, "attic/foo.100.txt.gz", "one\n")
	writeFile(t, root, "pages/foo.txt", []byte("two\n"))

	records := []changelog.Record{
		{Timestamp: 100, IP: "1.1.1.1", Type: changelog.Create, Name: "foo", Author: "alice", Message: "created", Kind: wiki.Page, SourceFile: "meta/foo.changes"},
		{Timestamp: 200, IP: "1.1.1.1", Type: changelog.Edit, Name: "foo", Author: "bob", Message: "edited", Kind: wiki.Page, SourceFile: "meta/foo.changes", Line: 1, Last: true},
	}

	e, _ := newEmitter(t, l, Options{SkipCatchAll: true})
	ops, stats, err := e.Emit(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, ops, 4)
	assert.Equal(t, Reset{Ref: "refs/heads/master"}, ops[0])
	assert.Equal(t, Done{}, ops[3])
	assert.Equal(t, Stats{Commits: 2, Substituted: 1}, stats)

	first := ops[1].(Commit)
	assert.Equal(t, "refs/heads/master", first.Ref)
	assert.Equal(t, Identity{Name: "alice", Email: DefaultEmail}, first.Author)
	assert.Equal(t, first.Author, first.Committer)
	assert.Equal(t, int64(100), first.When.Unix())
	_, offset := first.When.Zone()
	assert.Equal(t, -8*60*60, offset)
	assert.Equal(t, "created\n\n"+
		"Dokuwiki-Author: alice\n"+
		"Dokuwiki-Change-Type: C\n"+
		"Dokuwiki-IP: 1.1.1.1\n"+
		"Dokuwiki-Kind: page\n"+
		"Dokuwiki-Object: foo\n"+
		"Dokuwiki-Snapshot: attic/foo.100.txt.gz\n", first.Message)

	require.Len(t, first.Changes, 1)
	mod := first.Changes[0].(Modify)
	assert.Equal(t, "pages/foo.txt", mod.Path)
	assert.Equal(t, ModeRegular, mod.Mode)
	data, err := mod.Source.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))

	second := ops[2].(Commit)
	assert.Contains(t, second.Message, "Dokuwiki-Note: current version pages/foo.txt substituted")
	data, err = second.Changes[0].(Modify).Source.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(data))
}

func TestEmit_DeleteAndRevert(t *testing.T) {
	l, root := newLayout(t)
	writeFile(t, root, "media_attic/logo.100.png", []byte("v1"))
	writeFile(t, root, "media_attic/logo.300.png", []byte("v1"))

	records := []changelog.Record{
		{Timestamp: 100, Type: changelog.Create, Name: "logo.png", Kind: wiki.Media},
		{Timestamp: 200, Type: changelog.Delete, Name: "logo.png", Kind: wiki.Media, Message: "gone", Extra: "x"},
		{Timestamp: 300, Type: changelog.Revert, Name: "logo.png", Kind: wiki.Media, Extra: "100", Last: true},
	}
	e, _ := newEmitter(t, l, Options{SkipCatchAll: true})
	ops, _, err := e.Emit(context.Background(), records)
	require.NoError(t, err)
	cs := commits(ops)
	require.Len(t, cs, 3)

	assert.Equal(t, ServiceName, cs[0].Author.Name, "empty author falls back to the service name")
	assert.Contains(t, cs[0].Message, emptyMessage+"\n\n")
	assert.NotContains(t, cs[0].Message, keyAuthor)

	assert.Equal(t, []FileChange{Delete{Path: "media/logo.png"}}, cs[1].Changes)
	assert.NotContains(t, cs[1].Message, keySnapshot)
	assert.Contains(t, cs[1].Message, "Dokuwiki-Extra: x\n")

	assert.Contains(t, cs[2].Message, "Dokuwiki-Revert-Target: 100\n")
	assert.NotContains(t, cs[2].Message, keyExtra)
	assert.Contains(t, cs[2].Message, "Dokuwiki-Snapshot: media_attic/logo.300.png\n")
}

func TestEmit_MissingSnapshotWarns(t *testing.T) {
	l, _ := newLayout(t)
	records := []changelog.Record{
		{Timestamp: 100, Type: changelog.Edit, Name: "ns:gone", Kind: wiki.Page, SourceFile: "meta/ns/gone.changes", Last: true},
	}
	e, hook := newEmitter(t, l, Options{SkipCatchAll: true})
	ops, stats, err := e.Emit(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Missing)

	c := commits(ops)[0]
	assert.Contains(t, c.Message, "Dokuwiki-Warning: snapshot attic/ns/gone.100.txt.gz is missing\n")
	data, err := c.Changes[0].(Modify).Source.Bytes()
	require.NoError(t, err)
	assert.Equal(t, resolve.Placeholder("attic/ns/gone.100.txt.gz"), data)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, "resolve_content", entry.Data["action"])
			assert.Equal(t, "ns:gone", entry.Data["object"])
		}
	}
	assert.True(t, warned)
}

func TestEmit_CatchAll(t *testing.T) {
	l, root := newLayout(t)
	writeFile(t, root, "pages/start.txt", []byte("start"))
	writeFile(t, root, "pages/wiki/syntax.txt", []byte("syntax"))

	e, hook := newEmitter(t, l, Options{Email: "wiki@example.org"})
	ops, stats, err := e.Emit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Commits)

	cs := commits(ops)
	require.Len(t, cs, 2)

	media := cs[0]
	assert.Equal(t, "Add all current media files\n", media.Message)
	assert.Empty(t, media.Changes)

	pages := cs[1]
	assert.Equal(t, "Add all current pages\n", pages.Message)
	assert.Equal(t, Identity{Name: ServiceName, Email: "wiki@example.org"}, pages.Author)
	assert.Equal(t, pages.Author, pages.Committer)
	assert.Equal(t, fixedNow.Unix(), pages.When.Unix())
	require.Len(t, pages.Changes, 2)
	assert.Equal(t, "pages/start.txt", pages.Changes[0].(Modify).Path)
	assert.Equal(t, "pages/wiki/syntax.txt", pages.Changes[1].(Modify).Path)

	var noted bool
	for _, entry := range hook.AllEntries() {
		if entry.Data["action"] == "catch_all" {
			noted = true
			assert.Equal(t, logrus.InfoLevel, entry.Level)
		}
	}
	assert.True(t, noted, "empty media store is reported")
}

func TestEmit_CommitterOverrideAndBranch(t *testing.T) {
	l, _ := newLayout(t)
	committer := Identity{Name: "Importer", Email: "import@example.org"}
	e, _ := newEmitter(t, l, Options{Branch: "wiki", Committer: &committer, SkipCatchAll: true})

	ops, _, err := e.Emit(context.Background(), []changelog.Record{
		{Timestamp: 1, Type: changelog.Delete, Name: "foo", Author: "alice", Kind: wiki.Page},
	})
	require.NoError(t, err)
	assert.Equal(t, Reset{Ref: "refs/heads/wiki"}, ops[0])
	c := commits(ops)[0]
	assert.Equal(t, "alice", c.Author.Name)
	assert.Equal(t, committer, c.Committer)
	assert.Equal(t, "refs/heads/wiki", c.Ref)
}

func TestEmit_UnknownTypePanics(t *testing.T) {
	l, _ := newLayout(t)
	e, _ := newEmitter(t, l, Options{SkipCatchAll: true})
	assert.Panics(t, func() {
		_, _, _ = e.Emit(context.Background(), []changelog.Record{
			{Timestamp: 1, Type: changelog.ChangeType("X"), Name: "foo", Kind: wiki.Page},
		})
	})
}

func TestEmit_Cancelled(t *testing.T) {
	l, _ := newLayout(t)
	e, _ := newEmitter(t, l, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.Emit(ctx, []changelog.Record{{Timestamp: 1, Type: changelog.Delete, Name: "foo"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderMeta(t *testing.T) {
	got := renderMeta(map[string]string{
		"B": "two\nlines",
		"A": "one",
		"C": "",
	})
	assert.Equal(t, "A: one\nB: two lines\n", got)
}

func TestIdentity_String(t *testing.T) {
	assert.Equal(t, "alice <a@example.org>", Identity{Name: "alice", Email: "a@example.org"}.String())
	assert.Equal(t, "ab <e>", Identity{Name: "a<b>\n", Email: "<e>"}.String())
	assert.Equal(t, "dokuwiki2git <e>", Identity{Name: "<>", Email: "e"}.String())
	assert.Equal(t, "dokuwiki2git <e>", Identity{Name: " \r\n ", Email: "e"}.String())
}
