// Package changelog parses DokuWiki .changes files and merges them into a
// single chronological history.
package changelog

import (
	"fmt"

	"github.com/systemshift/dokuwiki2git/internal/wiki"
)

// ChangeType is the single-letter change code DokuWiki writes into field 3.
type ChangeType string

const (
	Create    ChangeType = "C"
	Edit      ChangeType = "E"
	MinorEdit ChangeType = "e"
	Delete    ChangeType = "D"
	Revert    ChangeType = "R"
)

// ParseChangeType validates a change code.
func ParseChangeType(s string) (ChangeType, error) {
	t := ChangeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unsupported change type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported codes.
func (t ChangeType) Valid() bool {
	switch t {
	case Create, Edit, MinorEdit, Delete, Revert:
		return true
	}
	return false
}

// Describe returns a lower-case word for t, used in log output.
func (t ChangeType) Describe() string {
	switch t {
	case Create:
		return "create"
	case Edit:
		return "edit"
	case MinorEdit:
		return "minor edit"
	case Delete:
		return "delete"
	case Revert:
		return "revert"
	}
	return "unknown"
}

// Record is one changelog line for one object.
type Record struct {
	Timestamp int64
	IP        string
	Type      ChangeType
	Name      string // colon-separated object name
	Author    string
	Message   string
	Extra     string // for Revert: the timestamp reverted to
	Kind      wiki.Kind

	SourceFile string // changelog path relative to the data root
	Line       int    // 0-based line index within SourceFile
	Last       bool   // most recent record for its object
}

// reserved names are DokuWiki's global changelogs, not objects.
var reserved = map[string]bool{
	"_dokuwiki": true,
	"_comments": true,
	"_media":    true,
}

// IsReserved reports whether name is an internal changelog name.
func IsReserved(name string) bool {
	return reserved[name]
}
