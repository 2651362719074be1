// Package stream builds and writes git fast-import streams.
package stream

import (
	"strings"
	"time"

	"github.com/systemshift/dokuwiki2git/internal/resolve"
)

// ModeRegular is the only file mode emitted: regular, non-executable.
const ModeRegular = "100644"

// Identity is a name/email pair for author and committer lines.
type Identity struct {
	Name  string
	Email string
}

// String renders the identity as "Name <email>". Characters fast-import
// cannot carry inside an identity are dropped, and a name left empty by
// that falls back to ServiceName.
func (id Identity) String() string {
	name := clean(id.Name)
	if name == "" {
		name = ServiceName
	}
	return name + " <" + clean(id.Email) + ">"
}

var identityReplacer = strings.NewReplacer("<", "", ">", "", "\n", " ", "\r", "")

func clean(s string) string {
	return strings.TrimSpace(identityReplacer.Replace(s))
}

// Op is one import-stream command.
type Op interface {
	op()
}

// Reset starts ref from empty history.
type Reset struct {
	Ref string
}

// Commit appends one commit to Ref.
type Commit struct {
	Ref       string
	Author    Identity
	Committer Identity
	When      time.Time
	Message   string
	Changes   []FileChange
}

// Done terminates the stream.
type Done struct{}

func (Reset) op()  {}
func (Commit) op() {}
func (Done) op()   {}

// FileChange is one file operation inside a commit.
type FileChange interface {
	fileChange()
}

// Modify writes Source to Path.
type Modify struct {
	Path   string
	Mode   string
	Source resolve.Source
}

// Delete removes Path.
type Delete struct {
	Path string
}

func (Modify) fileChange() {}
func (Delete) fileChange() {}
