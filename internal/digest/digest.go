// Package digest computes the file hashes used across the tool: SHA-256 for
// manifest integrity entries and SHA-1 for content-addressed library names.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// SHA256File returns the hex SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	return fileDigest(path, sha256.New())
}

// SHA1File returns the hex SHA-1 digest of the file at path.
func SHA1File(path string) (string, error) {
	return fileDigest(path, sha1.New())
}

func fileDigest(path string, h hash.Hash) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
