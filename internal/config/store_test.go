package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "config"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore_CreatedEmptyOnFirstAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file not created: %v", err)
	}
	dump, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if dump != "" {
		t.Errorf("expected empty dump, got %q", dump)
	}
}

func TestStore_SetGet(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("toolchain", "/usr/bin/cc"); err != nil {
		t.Fatal(err)
	}

	v, ok, err := s.Get("toolchain")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "/usr/bin/cc" {
		t.Errorf("Get = %q, %v; want /usr/bin/cc, true", v, ok)
	}

	if _, ok, _ := s.Get("missing"); ok {
		t.Error("absent key reported as present")
	}
}

func TestStore_LastWriteWins(t *testing.T) {
	s := openTestStore(t)

	if err := s.Set("toolchain", "/old"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("build-options", "-O2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("toolchain", "/new"); err != nil {
		t.Fatal(err)
	}

	v, _, err := s.Get("toolchain")
	if err != nil {
		t.Fatal(err)
	}
	if v != "/new" {
		t.Errorf("Get(toolchain) = %q, want /new", v)
	}

	dump, err := s.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(dump, "toolchain: ") != 1 {
		t.Errorf("expected a single toolchain line, dump:\n%s", dump)
	}
	if !strings.Contains(dump, "build-options: -O2") {
		t.Errorf("unrelated key lost, dump:\n%s", dump)
	}
}

func TestHome_Override(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "yapmhome")
	t.Setenv("YAPM_HOME", dir)

	got, err := Home()
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("Home() = %q, want %q", got, dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("home dir not created: %v", err)
	}
}
