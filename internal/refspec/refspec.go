package refspec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Ref is a parsed package reference. Exactly one concrete type is produced
// per input string; callers dispatch with a type switch so that a new
// reference kind cannot be half-handled.
type Ref interface {
	isRef()
	// String renders the reference back into the input grammar.
	String() string
}

// GithubRef identifies a repository on GitHub, optionally pinned to a commit.
type GithubRef struct {
	Owner  string
	Repo   string
	Commit string
}

// FileRef identifies a local tarball, optionally carrying a commit pin.
type FileRef struct {
	Path   string
	Commit string
}

// URLRef identifies a remote archive by URL.
type URLRef struct {
	URL string
}

// UUIDRef identifies a package by registry UUID, optionally pinned.
type UUIDRef struct {
	UUID   string
	Commit string
}

func (GithubRef) isRef() {}
func (FileRef) isRef()   {}
func (URLRef) isRef()    {}
func (UUIDRef) isRef()   {}

func (r GithubRef) String() string {
	return "github:" + r.Owner + "/" + r.Repo + commitSuffix(r.Commit)
}

func (r FileRef) String() string {
	return "file:" + r.Path + commitSuffix(r.Commit)
}

func (r URLRef) String() string {
	return r.URL
}

func (r UUIDRef) String() string {
	return "uuid:" + r.UUID + commitSuffix(r.Commit)
}

func commitSuffix(commit string) string {
	if commit == "" {
		return ""
	}
	return "@" + commit
}

var schemeRe = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)

// Parse turns a reference string into its tagged variant. The prefix decides
// the kind: "github:", "file:", "uuid:", otherwise a URL with an explicit
// scheme. Anything else is a usage error.
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty package reference")
	}

	switch {
	case strings.HasPrefix(s, "github:"):
		rest, commit := splitCommit(strings.TrimPrefix(s, "github:"))
		owner, repo, ok := strings.Cut(rest, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return nil, fmt.Errorf("malformed github reference %q: want github:<user>/<repo>[@<commit>]", s)
		}
		return GithubRef{Owner: owner, Repo: repo, Commit: commit}, nil

	case strings.HasPrefix(s, "file:"):
		rest, commit := splitCommit(strings.TrimPrefix(s, "file:"))
		if rest == "" {
			return nil, fmt.Errorf("malformed file reference %q: empty path", s)
		}
		return FileRef{Path: rest, Commit: commit}, nil

	case strings.HasPrefix(s, "uuid:"):
		rest, commit := splitCommit(strings.TrimPrefix(s, "uuid:"))
		if _, err := uuid.Parse(rest); err != nil {
			return nil, fmt.Errorf("malformed uuid reference %q: %w", s, err)
		}
		return UUIDRef{UUID: rest, Commit: commit}, nil

	case schemeRe.MatchString(s):
		return URLRef{URL: s}, nil
	}

	return nil, fmt.Errorf("unrecognized package reference %q", s)
}

// splitCommit separates an optional trailing @<commit> pin. The last '@'
// wins, so paths containing '@' still parse as long as the pin comes last.
func splitCommit(s string) (rest, commit string) {
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
