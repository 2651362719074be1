package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/systemshift/dokuwiki2git/internal/resolve"
)

// Serializer renders operations in git fast-import syntax.
type Serializer struct {
	dedupe   bool
	blobs    *BlobTable
	lastMark int
	read     func(resolve.Source) ([]byte, error)
}

// NewSerializer creates a Serializer. With dedupe set, each distinct
// content is written once as a marked blob and referenced by mark.
func NewSerializer(dedupe bool) *Serializer {
	return &Serializer{dedupe: dedupe, blobs: NewBlobTable(), read: resolve.Source.Bytes}
}

// Blobs returns the number of distinct blobs written so far in dedupe mode.
func (s *Serializer) Blobs() int {
	return s.blobs.Len()
}

// Write renders ops to w in order.
func (s *Serializer) Write(ctx context.Context, w io.Writer, ops []Op) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch o := op.(type) {
		case Reset:
			_, err = fmt.Fprintf(bw, "reset %s\n", o.Ref)
		case Commit:
			err = s.writeCommit(bw, o)
		case Done:
			_, err = io.WriteString(bw, "done\n")
		default:
			err = fmt.Errorf("unknown operation %T", op)
		}
		if err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush stream: %w", err)
	}
	return nil
}

func (s *Serializer) writeCommit(w *bufio.Writer, c Commit) error {
	// In dedupe mode blob commands must precede the commit that uses them.
	// Inline content is read one file at a time while the commit is written.
	var marks []int
	if s.dedupe {
		marks = make([]int, len(c.Changes))
		for i, ch := range c.Changes {
			mod, ok := ch.(Modify)
			if !ok {
				continue
			}
			data, err := s.read(mod.Source)
			if err != nil {
				return fmt.Errorf("read content for %s: %w", mod.Path, err)
			}
			if marks[i], err = s.writeBlob(w, data); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(w, "commit %s\n", c.Ref)
	fmt.Fprintf(w, "author %s\n", formatSignature(c.Author, c.When))
	fmt.Fprintf(w, "committer %s\n", formatSignature(c.Committer, c.When))
	writeData(w, []byte(c.Message))

	for i, ch := range c.Changes {
		switch fc := ch.(type) {
		case Modify:
			mode := fc.Mode
			if mode == "" {
				mode = ModeRegular
			}
			if s.dedupe {
				fmt.Fprintf(w, "M %s :%d %s\n", mode, marks[i], quotePath(fc.Path))
				continue
			}
			fmt.Fprintf(w, "M %s inline %s\n", mode, quotePath(fc.Path))
			data, err := s.read(fc.Source)
			if err != nil {
				return fmt.Errorf("read content for %s: %w", fc.Path, err)
			}
			writeData(w, data)
		case Delete:
			fmt.Fprintf(w, "D %s\n", quotePath(fc.Path))
		default:
			return fmt.Errorf("unknown file change %T", ch)
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// writeBlob emits data as a marked blob unless identical content was
// already written, and returns its mark.
func (s *Serializer) writeBlob(w *bufio.Writer, data []byte) (int, error) {
	key, mark, ok, err := s.blobs.Lookup(data)
	if err != nil {
		return 0, fmt.Errorf("hash blob: %w", err)
	}
	if ok {
		return mark, nil
	}
	s.lastMark++
	mark = s.lastMark
	s.blobs.Assign(key, mark)

	fmt.Fprintf(w, "blob\nmark :%d\n", mark)
	writeData(w, data)
	return mark, nil
}

func formatSignature(id Identity, when time.Time) string {
	return fmt.Sprintf("%s %d %s", id, when.Unix(), when.Format("-0700"))
}

// writeData emits an exact-length data command followed by the optional LF.
func writeData(w *bufio.Writer, data []byte) {
	fmt.Fprintf(w, "data %d\n", len(data))
	w.Write(data)
	w.WriteByte('\n')
}

// quotePath applies C-style quoting when fast-import requires it: the path
// starts with a double quote or contains a line feed.
func quotePath(p string) string {
	if !strings.HasPrefix(p, `"`) && !strings.Contains(p, "\n") {
		return p
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
