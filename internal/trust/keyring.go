// Package trust implements the manifest trust model: a detached SSH
// signature over the manifest file, checked against a keyring of allowed
// signers, followed by verification of the manifest's per-file digests
// against the working tree.
package trust

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Entry is one allowed signer: an identity string (conventionally
// user@host) bound to a public key.
type Entry struct {
	Identity    string
	PublicKey   ssh.PublicKey
	Fingerprint string // SHA256:... short key ID
}

// Keyring is the set of signers the tool trusts.
type Keyring struct {
	entries []Entry
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{}
}

// Add registers an allowed signer.
func (k *Keyring) Add(identity string, pub ssh.PublicKey) {
	k.entries = append(k.entries, Entry{
		Identity:    identity,
		PublicKey:   pub,
		Fingerprint: ssh.FingerprintSHA256(pub),
	})
}

// Lookup finds the entry whose key matches pub, if any.
func (k *Keyring) Lookup(pub ssh.PublicKey) (Entry, bool) {
	marshaled := pub.Marshal()
	for _, e := range k.entries {
		if string(e.PublicKey.Marshal()) == string(marshaled) {
			return e, true
		}
	}
	return Entry{}, false
}

// Len reports the number of allowed signers.
func (k *Keyring) Len() int {
	return len(k.entries)
}

// LoadKeyring reads an allowed-signers file: one signer per line in the form
// "<identity> <key-type> <base64-key>". Blank lines and '#' comments are
// skipped. A missing file yields an empty keyring.
func LoadKeyring(path string) (*Keyring, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewKeyring(), nil
		}
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	defer file.Close()

	k := NewKeyring()
	scanner := bufio.NewScanner(file)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, keyText, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("keyring %s line %d: malformed entry", path, lineno)
		}
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(keyText))
		if err != nil {
			return nil, fmt.Errorf("keyring %s line %d: %w", path, lineno, err)
		}
		k.Add(identity, pub)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	return k, nil
}
