package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// Filename is the manifest's fixed name inside a working tree.
	Filename = "manifest"
	// SignatureFilename is the detached signature bound to the manifest.
	SignatureFilename = "manifest.sig"
	// HashKeyPrefix is the reserved repeating-key namespace for per-file
	// integrity digests: "hash-<relative-path>: <hex-sha256>".
	HashKeyPrefix = "hash-"
)

// ErrMissingKey reports a required manifest key that is absent.
var ErrMissingKey = errors.New("missing required manifest key")

// Entry is a single "key: value" manifest line.
type Entry struct {
	Key   string
	Value string
}

// HashEntry is one declared per-file digest.
type HashEntry struct {
	Path   string // relative to the working tree
	Digest string // hex SHA-256
}

// Manifest is an ordered list of key/value entries. Lookup is first-match so
// the on-disk line order is authoritative.
type Manifest struct {
	entries []Entry
}

// Parse reads "key: value" lines. Blank lines and lines without a key
// separator are skipped.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			// "key:" with no trailing space still counts as an empty value.
			if strings.HasSuffix(line, ":") {
				key, value = strings.TrimSuffix(line, ":"), ""
			} else {
				continue
			}
		}
		if key == "" {
			continue
		}
		m.entries = append(m.entries, Entry{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	return m, nil
}

// Load parses the manifest file at path.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Get returns the first value recorded for key. The second result
// distinguishes an absent key from a key present with an empty value.
func (m *Manifest) Get(key string) (string, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Required returns the value for key or ErrMissingKey.
func (m *Manifest) Required(key string) (string, error) {
	v, ok := m.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return v, nil
}

// Append adds an entry at the end, keeping any earlier entry for the same
// key in place (Get still returns the first).
func (m *Manifest) Append(key, value string) {
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Hashes returns the declared per-file digests in manifest order.
func (m *Manifest) Hashes() []HashEntry {
	var hashes []HashEntry
	for _, e := range m.entries {
		if strings.HasPrefix(e.Key, HashKeyPrefix) {
			hashes = append(hashes, HashEntry{
				Path:   strings.TrimPrefix(e.Key, HashKeyPrefix),
				Digest: e.Value,
			})
		}
	}
	return hashes
}

// Write emits the manifest in line order.
func (m *Manifest) Write(w io.Writer) error {
	for _, e := range m.entries {
		if _, err := fmt.Fprintf(w, "%s: %s\n", e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the manifest to path, replacing any existing file.
func (m *Manifest) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	defer file.Close()

	if err := m.Write(file); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
