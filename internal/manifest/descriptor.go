package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor carries the package identity read from a build descriptor.
type Descriptor struct {
	Name string
	Vers string
}

var attrRe = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

// ReadDescriptor extracts the package name and version from a build
// descriptor file. YAML descriptors (.yml/.yaml) are decoded structurally;
// anything else is scanned for literal `name = "..."` and `vers = "..."`
// attributes, so build scripts that merely embed the attributes still work.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build descriptor: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return parseYAMLDescriptor(path, data)
	}
	return scanAttrDescriptor(path, data)
}

func parseYAMLDescriptor(path string, data []byte) (*Descriptor, error) {
	var doc struct {
		Name    string `yaml:"name"`
		Vers    string `yaml:"vers"`
		Version string `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	d := &Descriptor{Name: doc.Name, Vers: doc.Vers}
	if d.Vers == "" {
		d.Vers = doc.Version
	}
	if d.Name == "" || d.Vers == "" {
		return nil, fmt.Errorf("%s: missing name or version", filepath.Base(path))
	}
	return d, nil
}

func scanAttrDescriptor(path string, data []byte) (*Descriptor, error) {
	d := &Descriptor{}
	for _, match := range attrRe.FindAllStringSubmatch(string(data), -1) {
		switch match[1] {
		case "name":
			if d.Name == "" {
				d.Name = match[2]
			}
		case "vers":
			if d.Vers == "" {
				d.Vers = match[2]
			}
		}
	}

	if d.Name == "" || d.Vers == "" {
		return nil, fmt.Errorf("%s: no name/vers attributes found", filepath.Base(path))
	}
	return d, nil
}
