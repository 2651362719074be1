package changelog

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// CollectOptions configures Collect.
type CollectOptions struct {
	// Jobs bounds the number of files parsed concurrently. Values below 1
	// mean sequential parsing.
	Jobs  int
	Parse ParseOptions
}

// Collect parses every file and concatenates the records in file order.
// All malformed files are reported together in one error.
func Collect(ctx context.Context, files []wiki.Changelog, opts CollectOptions) ([]Record, error) {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	// One slot per file so workers never share state.
	results := make([][]Record, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, cl := range files {
		i, cl := i, cl
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = ParseFile(cl, opts.Parse)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merr *multierror.Error
	total := 0
	for i := range files {
		if errs[i] != nil {
			merr = multierror.Append(merr, errs[i])
			continue
		}
		total += len(results[i])
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	all := make([]Record, 0, total)
	for _, recs := range results {
		all = append(all, recs...)
	}
	return all, nil
}

// Sort returns a copy of records in global chronological order.
func Sort(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(out[i], out[j]) < 0
	})
	return out
}

// Compare orders records by timestamp, then by every remaining field, so
// that records with equal timestamps never keep their arrival order.
func Compare(a, b Record) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	for _, p := range [...][2]string{
		{a.IP, b.IP},
		{string(a.Type), string(b.Type)},
		{a.Name, b.Name},
		{a.Author, b.Author},
		{a.Message, b.Message},
		{a.Extra, b.Extra},
	} {
		if p[0] != p[1] {
			if p[0] < p[1] {
				return -1
			}
			return 1
		}
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if a.SourceFile != b.SourceFile {
		if a.SourceFile < b.SourceFile {
			return -1
		}
		return 1
	}
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	}
	return 0
}

// Aggregate collects the page and media changelogs of layout and sorts them.
func Aggregate(ctx context.Context, layout *wiki.Layout, opts CollectOptions) ([]Record, error) {
	var files []wiki.Changelog
	for _, k := range []wiki.Kind{wiki.Page, wiki.Media} {
		cls, err := layout.Changelogs(k)
		if err != nil {
			return nil, err
		}
		files = append(files, cls...)
	}
	records, err := Collect(ctx, files, opts)
	if err != nil {
		return nil, err
	}
	return Sort(records), nil
}

// Stats counts records and distinct objects per kind.
type Stats struct {
	PageEntries  int
	Pages        int
	MediaEntries int
	Media        int
}

// Summarize computes Stats for records.
func Summarize(records []Record) Stats {
	var s Stats
	seen := map[wiki.Kind]map[string]bool{
		wiki.Page:  {},
		wiki.Media: {},
	}
	for _, r := range records {
		seen[r.Kind][r.Name] = true
		if r.Kind == wiki.Page {
			s.PageEntries++
		} else {
			s.MediaEntries++
		}
	}
	s.Pages = len(seen[wiki.Page])
	s.Media = len(seen[wiki.Media])
	return s
}
