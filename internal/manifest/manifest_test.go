package manifest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParse_GetFirstMatch(t *testing.T) {
	input := "name: foo\nvers: 1.2\nname: shadowed\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := m.Get("name"); !ok || v != "foo" {
		t.Errorf("Get(name) = %q, %v; want foo, true", v, ok)
	}
	if v, ok := m.Get("vers"); !ok || v != "1.2" {
		t.Errorf("Get(vers) = %q, %v; want 1.2, true", v, ok)
	}
}

func TestParse_AbsentVersusEmpty(t *testing.T) {
	m, err := Parse(strings.NewReader("build: \n"))
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := m.Get("build"); !ok || v != "" {
		t.Errorf("empty value: got %q, %v; want present with empty value", v, ok)
	}
	if _, ok := m.Get("test"); ok {
		t.Error("absent key reported as present")
	}
}

func TestRequired_Missing(t *testing.T) {
	m, err := Parse(strings.NewReader("name: foo\n"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Required("vers"); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}

func TestHashes_OrderPreserved(t *testing.T) {
	input := "name: foo\nvers: 1.0\nhash-src/main.c: aa11\nhash-Makefile: bb22\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	hashes := m.Hashes()
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hash entries, got %d", len(hashes))
	}
	if hashes[0].Path != "src/main.c" || hashes[0].Digest != "aa11" {
		t.Errorf("unexpected first hash entry: %+v", hashes[0])
	}
	if hashes[1].Path != "Makefile" || hashes[1].Digest != "bb22" {
		t.Errorf("unexpected second hash entry: %+v", hashes[1])
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	m := &Manifest{}
	m.Append("name", "foo")
	m.Append("vers", "0.1")
	m.Append("hash-lib.rs", "deadbeef")

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatal(err)
	}

	want := "name: foo\nvers: 0.1\nhash-lib.rs: deadbeef\n"
	if buf.String() != want {
		t.Errorf("Write output:\n%s\nwant:\n%s", buf.String(), want)
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := parsed.Get("name"); v != "foo" {
		t.Errorf("round trip lost name: %q", v)
	}
}
