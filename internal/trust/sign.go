package trust

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// signaturePrefix tags the detached signature format. A signature line is
// "sshsig-v1:<sig-format>:<base64-pubkey>:<base64-sig>".
const signaturePrefix = "sshsig-v1"

// ManifestSigner signs manifest bytes with an SSH private key.
type ManifestSigner struct {
	signer ssh.Signer
}

// NewSigner wraps an ssh.Signer.
func NewSigner(signer ssh.Signer) *ManifestSigner {
	return &ManifestSigner{signer: signer}
}

// NewSignerFromKeyFile loads the private key at keyPath. An empty keyPath
// falls back to the default SSH keys in ~/.ssh.
func NewSignerFromKeyFile(keyPath string) (*ManifestSigner, error) {
	resolved, err := resolveKeyPath(keyPath)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading signing key %s: %w", resolved, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key %s: %w", resolved, err)
	}
	return NewSigner(signer), nil
}

// SignDetached produces the detached signature line for payload.
func (s *ManifestSigner) SignDetached(payload []byte) (string, error) {
	sig, err := s.signer.Sign(rand.Reader, payload)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	pubB64 := base64.StdEncoding.EncodeToString(s.signer.PublicKey().Marshal())
	sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
	return fmt.Sprintf("%s:%s:%s:%s", signaturePrefix, sig.Format, pubB64, sigB64), nil
}

// PublicKey returns the signer's public key, for keyring registration.
func (s *ManifestSigner) PublicKey() ssh.PublicKey {
	return s.signer.PublicKey()
}

func resolveKeyPath(keyPath string) (string, error) {
	keyPath = strings.TrimSpace(keyPath)
	if keyPath != "" {
		return keyPath, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no signing key configured and no default SSH key found in ~/.ssh")
}
