package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frederic-klein/yapm/internal/refspec"
)

// fakeVcs materializes a clone by writing a marker file and records
// checkouts.
type fakeVcs struct {
	cloned    []string
	checkouts []string
	cloneErr  error
}

func (v *fakeVcs) Clone(url, dir string) error {
	if v.cloneErr != nil {
		return v.cloneErr
	}
	v.cloned = append(v.cloned, url)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "cloned"), []byte(url), 0644)
}

func (v *fakeVcs) Checkout(dir, commit string) error {
	v.checkouts = append(v.checkouts, commit)
	return nil
}

// mapRegistry resolves UUIDs from an in-memory table.
type mapRegistry map[string]string

func (r mapRegistry) Resolve(uuid string) (string, error) {
	ref, ok := r[uuid]
	if !ok {
		return "", fmt.Errorf("uuid %s not found in registry", uuid)
	}
	return ref, nil
}

func testFetcher() (*Fetcher, *fakeVcs) {
	vcs := &fakeVcs{}
	return &Fetcher{
		Vcs:        vcs,
		Downloader: NewDownloader(),
		LogFn:      func(string, ...interface{}) {},
	}, vcs
}

func mustFetch(t *testing.T, f *Fetcher, ref string) *WorkingTree {
	t.Helper()

	parsed, err := refspec.Parse(ref)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := f.Fetch(parsed)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tree.Remove() })
	return tree
}

func TestFetch_Github(t *testing.T) {
	f, vcs := testFetcher()

	tree := mustFetch(t, f, "github:alice/bar@deadbeef")

	if filepath.Base(tree.Dir) != "bar" {
		t.Errorf("working dir %q not named after the repo", tree.Dir)
	}
	if len(vcs.cloned) != 1 || vcs.cloned[0] != "https://github.com/alice/bar" {
		t.Errorf("unexpected clones: %v", vcs.cloned)
	}
	if len(vcs.checkouts) != 1 || vcs.checkouts[0] != "deadbeef" {
		t.Errorf("unexpected checkouts: %v", vcs.checkouts)
	}
}

func TestFetch_GithubNoCommitPin(t *testing.T) {
	f, vcs := testFetcher()

	mustFetch(t, f, "github:alice/bar")

	if len(vcs.checkouts) != 0 {
		t.Errorf("checkout should not run without a pin: %v", vcs.checkouts)
	}
}

func TestFetch_GithubCloneFailureIsFatal(t *testing.T) {
	f, vcs := testFetcher()
	vcs.cloneErr = errors.New("network down")

	ref, _ := refspec.Parse("github:alice/bar")
	if _, err := f.Fetch(ref); err == nil {
		t.Fatal("expected clone failure to be fatal")
	}
}

func TestFetch_File(t *testing.T) {
	tarball := createTestTarball(t, "pkg-2.0.tar.gz", map[string]string{
		"pkg-2.0/manifest": "name: pkg\nvers: 2.0\n",
	})
	f, _ := testFetcher()

	tree := mustFetch(t, f, "file:"+tarball)

	if filepath.Base(tree.Dir) != "pkg-2.0" {
		t.Errorf("working dir %q not derived from the tarball name", tree.Dir)
	}
	if _, err := os.Stat(filepath.Join(tree.Dir, "manifest")); err != nil {
		t.Errorf("extracted manifest missing: %v", err)
	}
}

func TestFetch_URL(t *testing.T) {
	tarball := createTestTarball(t, "x.tar.gz", map[string]string{
		"x/manifest": "name: x\nvers: 0.1\n",
	})
	data, err := os.ReadFile(tarball)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	f, _ := testFetcher()
	tree := mustFetch(t, f, server.URL+"/x.tar.gz")

	if filepath.Base(tree.Dir) != "x" {
		t.Errorf("working dir %q not derived from the URL", tree.Dir)
	}
	if _, err := os.Stat(filepath.Join(tree.Dir, "manifest")); err != nil {
		t.Errorf("extracted manifest missing: %v", err)
	}
}

func TestFetch_URLNoArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an archive"))
	}))
	defer server.Close()

	f, _ := testFetcher()
	ref, _ := refspec.Parse(server.URL + "/readme.txt")

	_, err := f.Fetch(ref)
	if !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func TestFetch_UUIDResolvesAndAppendsCommit(t *testing.T) {
	f, vcs := testFetcher()
	f.Registry = mapRegistry{
		"11111111-2222-3333-4444-555555555555": "github:alice/bar",
	}

	mustFetch(t, f, "uuid:11111111-2222-3333-4444-555555555555@v1")

	if len(vcs.checkouts) != 1 || vcs.checkouts[0] != "v1" {
		t.Errorf("commit pin not carried through resolution: %v", vcs.checkouts)
	}
}

func TestFetch_UUIDChain(t *testing.T) {
	f, vcs := testFetcher()
	f.Registry = mapRegistry{
		"11111111-2222-3333-4444-555555555555": "uuid:22222222-2222-3333-4444-555555555555",
		"22222222-2222-3333-4444-555555555555": "github:alice/chained",
	}

	mustFetch(t, f, "uuid:11111111-2222-3333-4444-555555555555")

	if len(vcs.cloned) != 1 || vcs.cloned[0] != "https://github.com/alice/chained" {
		t.Errorf("chained resolution failed: %v", vcs.cloned)
	}
}

func TestFetch_UUIDCycle(t *testing.T) {
	f, _ := testFetcher()
	f.Registry = mapRegistry{
		"11111111-2222-3333-4444-555555555555": "uuid:22222222-2222-3333-4444-555555555555",
		"22222222-2222-3333-4444-555555555555": "uuid:11111111-2222-3333-4444-555555555555",
	}

	ref, _ := refspec.Parse("uuid:11111111-2222-3333-4444-555555555555")
	if _, err := f.Fetch(ref); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestHTTPRegistry_Resolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "11111111-2222-3333-4444-555555555555: github:alice/bar\n")
		fmt.Fprint(w, "22222222-2222-3333-4444-555555555555: file:/tmp/x.tar\n")
	}))
	defer server.Close()

	reg := NewHTTPRegistry(server.URL)

	ref, err := reg.Resolve("11111111-2222-3333-4444-555555555555")
	if err != nil {
		t.Fatal(err)
	}
	if ref != "github:alice/bar" {
		t.Errorf("Resolve = %q, want github:alice/bar", ref)
	}

	if _, err := reg.Resolve("99999999-0000-0000-0000-000000000000"); err == nil {
		t.Error("expected unknown uuid to fail")
	}
}

func TestDownloader_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "sub", "out")
	d := NewDownloader()

	if err := d.Fetch(server.URL+"/ok", dest); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("unexpected contents: %q", data)
	}

	if err := d.Fetch(server.URL+"/missing", dest+"2"); err == nil {
		t.Error("expected HTTP 404 to fail")
	}
	if _, err := os.Stat(dest + "2.tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after failed download")
	}
}
