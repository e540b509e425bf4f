package fetch

import (
	"fmt"
	"net/http"

	"github.com/frederic-klein/yapm/internal/manifest"
)

// DefaultRegistryURL is the flat text document mapping package UUIDs to
// resolvable references, one "uuid: reference" line each.
const DefaultRegistryURL = "https://yapm.io/registry.txt"

// Registry resolves a package UUID to another reference string.
type Registry interface {
	Resolve(uuid string) (string, error)
}

// HTTPRegistry fetches the registry document on every lookup.
type HTTPRegistry struct {
	url    string
	client *http.Client
}

// NewHTTPRegistry creates a registry client for the document at url.
func NewHTTPRegistry(url string) *HTTPRegistry {
	return &HTTPRegistry{url: url, client: &http.Client{}}
}

// Resolve looks up uuid in the registry document.
func (r *HTTPRegistry) Resolve(uuid string) (string, error) {
	resp, err := r.client.Get(r.url)
	if err != nil {
		return "", fmt.Errorf("fetching registry %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching registry %s: HTTP %d", r.url, resp.StatusCode)
	}

	// The registry shares the manifest's flat "key: value" line format.
	doc, err := manifest.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing registry: %w", err)
	}
	ref, ok := doc.Get(uuid)
	if !ok {
		return "", fmt.Errorf("uuid %s not found in registry", uuid)
	}
	return ref, nil
}
