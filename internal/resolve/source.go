package resolve

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// SourceKind tags where a Source reads its bytes from.
type SourceKind int

const (
	InlineBytes SourceKind = iota
	RawFile
	GzipFile
)

func (k SourceKind) String() string {
	switch k {
	case InlineBytes:
		return "inline"
	case RawFile:
		return "raw"
	case GzipFile:
		return "gzip"
	}
	return fmt.Sprintf("source(%d)", int(k))
}

// Source is the content of one file modification. Files are not read until
// Open or Bytes is called.
type Source struct {
	Kind SourceKind
	Path string // filesystem path for RawFile and GzipFile
	Data []byte // content for InlineBytes
}

// Inline returns a Source holding data.
func Inline(data []byte) Source { return Source{Kind: InlineBytes, Data: data} }

// Raw returns a Source reading path as-is.
func Raw(path string) Source { return Source{Kind: RawFile, Path: path} }

// Gzip returns a Source decompressing path.
func Gzip(path string) Source { return Source{Kind: GzipFile, Path: path} }

// Open returns a reader over the decoded content.
func (s Source) Open() (io.ReadCloser, error) {
	switch s.Kind {
	case InlineBytes:
		return io.NopCloser(bytes.NewReader(s.Data)), nil
	case RawFile:
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.Path, err)
		}
		return f, nil
	case GzipFile:
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.Path, err)
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gunzip %s: %w", s.Path, err)
		}
		return &gzipFile{Reader: zr, f: f}, nil
	}
	return nil, fmt.Errorf("unknown source kind %v", s.Kind)
}

// Bytes reads the whole decoded content.
func (s Source) Bytes() ([]byte, error) {
	if s.Kind == InlineBytes {
		return s.Data, nil
	}
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return data, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return zerr
}
