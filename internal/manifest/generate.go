package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frederic-klein/yapm/internal/digest"
)

// Signer produces a detached signature string over a payload. The concrete
// implementation lives in the trust package; the generator only needs the
// capability.
type Signer interface {
	SignDetached(payload []byte) (string, error)
}

// Source and build files picked up by the hash walk, keyed by extension.
var hashedExts = map[string]bool{
	".c":    true,
	".cc":   true,
	".cpp":  true,
	".h":    true,
	".hpp":  true,
	".rs":   true,
	".go":   true,
	".py":   true,
	".sh":   true,
	".mk":   true,
	".toml": true,
	".yml":  true,
	".yaml": true,
}

// Build files matched by exact name regardless of extension.
var hashedNames = map[string]bool{
	"Makefile":  true,
	"configure": true,
}

// Generate reads the package identity from descriptorPath, writes a manifest
// to outPath and, when signer is non-nil, appends hash entries for
// extraFiles plus every recognized source/build file under outPath's
// directory and signs the result into outPath+".sig". Hash paths are
// recorded relative to outPath's directory and sorted so the output is
// reproducible.
func Generate(descriptorPath, outPath string, extraFiles []string, signer Signer) (*Manifest, error) {
	desc, err := ReadDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	m.Append("name", desc.Name)
	m.Append("vers", desc.Vers)

	if signer == nil {
		// Unsigned manifest: valid but untrusted, no hash entries.
		if err := m.Save(outPath); err != nil {
			return nil, err
		}
		return m, nil
	}

	root := filepath.Dir(outPath)
	paths, err := collectHashedFiles(root, outPath, extraFiles)
	if err != nil {
		return nil, err
	}
	for _, rel := range paths {
		sum, err := digest.SHA256File(filepath.Join(root, rel))
		if err != nil {
			return nil, err
		}
		m.Append(HashKeyPrefix+rel, sum)
	}

	if err := m.Save(outPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest for signing: %w", err)
	}
	sig, err := signer.SignDetached(data)
	if err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	}
	if err := os.WriteFile(outPath+".sig", []byte(sig+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("writing signature: %w", err)
	}

	return m, nil
}

// collectHashedFiles returns the sorted, deduplicated set of tree-relative
// paths to hash: the explicitly listed extras plus the recursive walk of
// recognized source/build files. The manifest and its signature are never
// hashed into themselves.
func collectHashedFiles(root, outPath string, extraFiles []string) ([]string, error) {
	seen := make(map[string]bool)

	for _, extra := range extraFiles {
		rel, err := treeRelative(root, extra)
		if err != nil {
			return nil, err
		}
		seen[rel] = true
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if path == outPath || path == outPath+".sig" {
			return nil
		}
		name := d.Name()
		if !hashedNames[name] && !hashedExts[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		seen[rel] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source tree: %w", err)
	}

	paths := make([]string, 0, len(seen))
	for rel := range seen {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths, nil
}

func treeRelative(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("file %s is outside the source tree: %w", path, err)
	}
	return rel, nil
}
