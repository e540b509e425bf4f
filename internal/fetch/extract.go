package fetch

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrBadArchive reports a tarball that does not contain a single top-level
// directory. Exactly one leading path component is stripped on extraction,
// so any other layout is rejected.
var ErrBadArchive = errors.New("archive must contain a single top-level directory")

var archiveSuffixes = []string{".tar.gz", ".tgz", ".tar"}

// IsArchive reports whether name looks like a supported tarball.
func IsArchive(name string) bool {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// StripArchiveExt removes the archive suffix from name, deriving a package
// name from a tarball filename.
func StripArchiveExt(name string) string {
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// ExtractArchive unpacks the tarball at archivePath into destDir, stripping
// exactly one leading path component. Every entry must live under one
// common top-level directory; a file at the archive root or a second
// top-level directory fails with ErrBadArchive.
func ExtractArchive(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if !strings.HasSuffix(archivePath, ".tar") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("decompressing archive: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	tarReader := tar.NewReader(reader)
	rootDir := ""

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		name = strings.TrimSuffix(name, "/")
		if name == "" || name == "." {
			continue
		}

		top, rest, hasRest := strings.Cut(name, "/")
		if rootDir == "" {
			rootDir = top
		}
		if top != rootDir {
			return fmt.Errorf("%w: found %q outside %q", ErrBadArchive, name, rootDir)
		}
		if !hasRest {
			// The top-level entry itself: only a directory is acceptable.
			if header.Typeflag != tar.TypeDir {
				return fmt.Errorf("%w: %q is not a directory", ErrBadArchive, name)
			}
			continue
		}

		if strings.Contains(rest, "..") {
			return fmt.Errorf("%w: path escapes destination: %q", ErrBadArchive, name)
		}
		target := filepath.Join(destDir, rest)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
			if _, err := io.Copy(f, tarReader); err != nil {
				f.Close()
				return fmt.Errorf("extracting %s: %w", name, err)
			}
			f.Close()
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("extracting %s: %w", name, err)
			}
		}
	}

	if rootDir == "" {
		return fmt.Errorf("%w: archive is empty", ErrBadArchive)
	}
	return nil
}
