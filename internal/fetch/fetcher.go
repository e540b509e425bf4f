// Package fetch materializes a package reference as an on-disk working
// tree: a fresh temporary directory holding the fetched source plus its
// manifest and signature.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/frederic-klein/yapm/internal/refspec"
)

// ErrNoArchive reports a URL fetch that produced no extractable archive.
var ErrNoArchive = errors.New("no archive file found after download")

// maxRegistryHops bounds UUID resolution so a registry mapping UUIDs to
// other UUIDs cannot loop forever.
const maxRegistryHops = 5

// WorkingTree is one in-flight install's fetched source. Dir is the package
// directory; root is the surrounding temp directory that Remove destroys.
type WorkingTree struct {
	Dir  string
	root string
}

// Remove deletes the entire working tree. Called only after a successful
// install; failures leave the tree for inspection.
func (w *WorkingTree) Remove() error {
	return os.RemoveAll(w.root)
}

// NewWorkingTree wraps an existing directory as a working tree owned by the
// caller; Remove deletes the directory itself.
func NewWorkingTree(dir string) *WorkingTree {
	return &WorkingTree{Dir: dir, root: dir}
}

// Fetcher resolves package references into working trees.
type Fetcher struct {
	Vcs        VcsClient
	Downloader *Downloader
	Registry   Registry
	LogFn      func(format string, args ...interface{})
}

// NewFetcher wires the production capability implementations: git, plain
// HTTP, and the registry document at registryURL.
func NewFetcher(registryURL string, logFn func(string, ...interface{})) *Fetcher {
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	return &Fetcher{
		Vcs:        GitClient{},
		Downloader: NewDownloader(),
		Registry:   NewHTTPRegistry(registryURL),
		LogFn:      logFn,
	}
}

// Fetch materializes ref into a fresh working tree. Every failure is fatal;
// nothing is retried.
func (f *Fetcher) Fetch(ref refspec.Ref) (*WorkingTree, error) {
	return f.fetch(ref, 0, map[string]bool{})
}

func (f *Fetcher) fetch(ref refspec.Ref, hops int, seen map[string]bool) (*WorkingTree, error) {
	switch r := ref.(type) {
	case refspec.GithubRef:
		return f.fetchGithub(r)
	case refspec.FileRef:
		return f.fetchFile(r)
	case refspec.URLRef:
		return f.fetchURL(r)
	case refspec.UUIDRef:
		return f.fetchUUID(r, hops, seen)
	}
	return nil, fmt.Errorf("unhandled reference kind %T", ref)
}

func (f *Fetcher) fetchGithub(ref refspec.GithubRef) (*WorkingTree, error) {
	root, err := workRoot()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(root, ref.Repo)
	cloneURL := "https://github.com/" + ref.Owner + "/" + ref.Repo

	f.LogFn("Cloning %s", cloneURL)
	if err := f.Vcs.Clone(cloneURL, dir); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.String(), err)
	}
	if ref.Commit != "" {
		f.LogFn("Checking out %s", ref.Commit)
		if err := f.Vcs.Checkout(dir, ref.Commit); err != nil {
			return nil, fmt.Errorf("fetching %s: %w", ref.String(), err)
		}
	}
	return &WorkingTree{Dir: dir, root: root}, nil
}

func (f *Fetcher) fetchFile(ref refspec.FileRef) (*WorkingTree, error) {
	root, err := workRoot()
	if err != nil {
		return nil, err
	}
	name := StripArchiveExt(filepath.Base(ref.Path))
	dir := filepath.Join(root, name)

	f.LogFn("Extracting %s", ref.Path)
	if err := ExtractArchive(ref.Path, dir); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.String(), err)
	}
	return &WorkingTree{Dir: dir, root: root}, nil
}

func (f *Fetcher) fetchURL(ref refspec.URLRef) (*WorkingTree, error) {
	parsed, err := url.Parse(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.URL, err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "/" {
		return nil, fmt.Errorf("fetching %s: cannot derive a package name from the URL", ref.URL)
	}

	root, err := workRoot()
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(root, base)

	f.LogFn("Downloading %s", ref.URL)
	if err := f.Downloader.Fetch(ref.URL, archivePath); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.URL, err)
	}
	if !IsArchive(base) {
		return nil, fmt.Errorf("fetching %s: %w", ref.URL, ErrNoArchive)
	}

	dir := filepath.Join(root, StripArchiveExt(base))
	f.LogFn("Extracting %s", base)
	if err := ExtractArchive(archivePath, dir); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.URL, err)
	}
	return &WorkingTree{Dir: dir, root: root}, nil
}

func (f *Fetcher) fetchUUID(ref refspec.UUIDRef, hops int, seen map[string]bool) (*WorkingTree, error) {
	if hops >= maxRegistryHops {
		return nil, fmt.Errorf("fetching %s: registry resolution exceeded %d hops", ref.String(), maxRegistryHops)
	}
	if seen[ref.UUID] {
		return nil, fmt.Errorf("fetching %s: registry resolution cycle", ref.String())
	}
	seen[ref.UUID] = true

	f.LogFn("Resolving uuid %s", ref.UUID)
	resolved, err := f.Registry.Resolve(ref.UUID)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ref.String(), err)
	}
	if ref.Commit != "" {
		resolved += "@" + ref.Commit
	}
	f.LogFn("Resolved to %s", resolved)

	next, err := refspec.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: registry returned %q: %w", ref.String(), resolved, err)
	}
	return f.fetch(next, hops+1, seen)
}

func workRoot() (string, error) {
	root, err := os.MkdirTemp("", "yapm-work-*")
	if err != nil {
		return "", fmt.Errorf("creating working directory: %w", err)
	}
	return root, nil
}
