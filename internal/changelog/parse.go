package changelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// ErrMalformed marks a changelog line that violates the file format.
var ErrMalformed = errors.New("malformed changelog")

const fieldCount = 7

// ParseError identifies the offending file and line.
type ParseError struct {
	File   string
	Line   int // 0-based
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %d: %s", e.File, e.Line+1, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// ParseOptions controls how malformed lines are handled.
type ParseOptions struct {
	// SkipMalformed drops bad lines instead of failing the file.
	SkipMalformed bool
	// OnSkip is called for every dropped line when SkipMalformed is set.
	// It may be called from several goroutines at once.
	OnSkip func(*ParseError)
}

// ParseFile parses one changelog into records in file order.
//
// The parse is two-pass: the file is first split into its non-empty lines,
// then each line is parsed. The record parsed from the final kept line is
// flagged Last. Reserved changelogs yield no records and no error.
func ParseFile(cl wiki.Changelog, opts ParseOptions) ([]Record, error) {
	if IsReserved(cl.Name) {
		return nil, nil
	}
	data, err := os.ReadFile(cl.Path)
	if err != nil {
		return nil, fmt.Errorf("read changelog %s: %w", cl.Rel, err)
	}

	lines, err := splitLines(data)
	if err != nil {
		return nil, fmt.Errorf("scan changelog %s: %w", cl.Rel, err)
	}

	records := make([]Record, 0, len(lines))
	for _, ln := range lines {
		rec, perr := parseLine(cl, ln.index, ln.text)
		if perr != nil {
			if !opts.SkipMalformed {
				return nil, perr
			}
			if opts.OnSkip != nil {
				opts.OnSkip(perr)
			}
			continue
		}
		records = append(records, rec)
	}
	if n := len(records); n > 0 {
		records[n-1].Last = true
	}
	return records, nil
}

type line struct {
	index int
	text  string
}

// splitLines returns the non-empty lines of data with their 0-based index.
func splitLines(data []byte) ([]line, error) {
	var lines []line
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for i := 0; sc.Scan(); i++ {
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			continue
		}
		lines = append(lines, line{index: i, text: text})
	}
	return lines, sc.Err()
}

func parseLine(cl wiki.Changelog, index int, text string) (Record, *ParseError) {
	fail := func(format string, args ...interface{}) (Record, *ParseError) {
		return Record{}, &ParseError{File: cl.Rel, Line: index, Reason: fmt.Sprintf(format, args...)}
	}

	fields := strings.Split(text, "\t")
	if len(fields) != fieldCount {
		return fail("expected %d tab-separated fields, got %d", fieldCount, len(fields))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fail("invalid timestamp %q", fields[0])
	}
	typ, err := ParseChangeType(fields[2])
	if err != nil {
		return fail("%v", err)
	}
	if fields[3] == "" {
		return fail("empty object name")
	}
	if fields[3] != cl.Name {
		return fail("object name %q does not match changelog name %q", fields[3], cl.Name)
	}

	return Record{
		Timestamp:  ts,
		IP:         fields[1],
		Type:       typ,
		Name:       fields[3],
		Author:     fields[4],
		Message:    fields[5],
		Extra:      fields[6],
		Kind:       cl.Kind,
		SourceFile: cl.Rel,
		Line:       index,
	}, nil
}
