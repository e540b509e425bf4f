package refspec

import (
	"testing"
)

func TestParse_Github(t *testing.T) {
	ref, err := Parse("github:alice/bar@deadbeef")
	if err != nil {
		t.Fatal(err)
	}

	gh, ok := ref.(GithubRef)
	if !ok {
		t.Fatalf("expected GithubRef, got %T", ref)
	}
	if gh.Owner != "alice" || gh.Repo != "bar" || gh.Commit != "deadbeef" {
		t.Errorf("unexpected parse: %+v", gh)
	}
}

func TestParse_GithubNoCommit(t *testing.T) {
	ref, err := Parse("github:alice/bar")
	if err != nil {
		t.Fatal(err)
	}

	gh := ref.(GithubRef)
	if gh.Commit != "" {
		t.Errorf("expected no commit, got %q", gh.Commit)
	}
}

func TestParse_File(t *testing.T) {
	ref, err := Parse("file:/tmp/pkg.tar")
	if err != nil {
		t.Fatal(err)
	}

	fr, ok := ref.(FileRef)
	if !ok {
		t.Fatalf("expected FileRef, got %T", ref)
	}
	if fr.Path != "/tmp/pkg.tar" || fr.Commit != "" {
		t.Errorf("unexpected parse: %+v", fr)
	}
}

func TestParse_UUID(t *testing.T) {
	ref, err := Parse("uuid:11111111-2222-3333-4444-555555555555@v1")
	if err != nil {
		t.Fatal(err)
	}

	ur, ok := ref.(UUIDRef)
	if !ok {
		t.Fatalf("expected UUIDRef, got %T", ref)
	}
	if ur.UUID != "11111111-2222-3333-4444-555555555555" || ur.Commit != "v1" {
		t.Errorf("unexpected parse: %+v", ur)
	}
}

func TestParse_URL(t *testing.T) {
	ref, err := Parse("http://example.com/x.tar")
	if err != nil {
		t.Fatal(err)
	}

	ur, ok := ref.(URLRef)
	if !ok {
		t.Fatalf("expected URLRef, got %T", ref)
	}
	if ur.URL != "http://example.com/x.tar" {
		t.Errorf("unexpected URL: %q", ur.URL)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"not-a-reference",
		"github:missing-slash",
		"github:/repo",
		"github:owner/",
		"github:a/b/c",
		"file:",
		"uuid:not-a-uuid",
	}

	for _, in := range cases {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	cases := []string{
		"github:alice/bar@deadbeef",
		"github:alice/bar",
		"file:/tmp/pkg.tar",
		"uuid:11111111-2222-3333-4444-555555555555@v1",
		"http://example.com/x.tar",
	}

	for _, in := range cases {
		ref, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := ref.String(); got != in {
			t.Errorf("round trip %q -> %q", in, got)
		}
	}
}
