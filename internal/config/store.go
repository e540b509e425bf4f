// Package config persists tool settings as a flat "key: value" file under
// the per-user yapm directory.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known settings keys.
const (
	KeyToolchain    = "toolchain"
	KeyBuildOptions = "build-options"
	KeySigningKey   = "signing-key"
	KeyRegistry     = "registry"
)

// Home returns the per-user yapm directory, creating it if needed.
// YAPM_HOME overrides the default ~/.yapm.
func Home() (string, error) {
	if dir := os.Getenv("YAPM_HOME"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating yapm home: %w", err)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, ".yapm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating yapm home: %w", err)
	}
	return dir, nil
}

// Store is a persisted key/value settings file. Every write is immediately
// durable; set is delete-then-append so the last write wins and no key is
// multi-valued.
type Store struct {
	path string
}

// Open returns a store backed by the file at path. The file is created
// empty on first access.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return nil, fmt.Errorf("creating config file: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// OpenDefault opens the store at <yapm-home>/config.
func OpenDefault() (*Store, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(home, "config"))
}

// Get returns the value for key. The second result distinguishes an absent
// key from one set to the empty string.
func (s *Store) Get(key string) (string, bool, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return "", false, fmt.Errorf("opening config: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if k, v, ok := cutLine(line); ok && k == key {
			return v, true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading config: %w", err)
	}
	return "", false, nil
}

// Set records key = value, deleting any prior line for that key first.
func (s *Store) Set(key, value string) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var out strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		if k, _, ok := cutLine(line); ok && k == key {
			continue
		}
		out.WriteString(line)
		out.WriteString("\n")
	}
	fmt.Fprintf(&out, "%s: %s\n", key, value)

	if err := os.WriteFile(s.path, []byte(out.String()), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Dump returns the raw store contents.
func (s *Store) Dump() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("reading config: %w", err)
	}
	return string(data), nil
}

func cutLine(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, ": ")
	if !ok && strings.HasSuffix(line, ":") {
		return strings.TrimSuffix(line, ":"), "", true
	}
	return key, value, ok
}
