package trust

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/frederic-klein/yapm/internal/digest"
	"github.com/frederic-klein/yapm/internal/manifest"
)

// Verification failure kinds. All are fatal; none may be downgraded.
var (
	// ErrBadSignature: the signature does not verify, or the signing key is
	// not in the keyring.
	ErrBadSignature = errors.New("bad manifest signature")
	// ErrWrongSigner: the signature verifies but the signer is not the one
	// the caller required.
	ErrWrongSigner = errors.New("manifest signed by wrong signer")
	// ErrHashMismatch: a file's digest differs from the manifest's declared
	// hash entry.
	ErrHashMismatch = errors.New("manifest hash mismatch")
	// ErrUnparseable: the signature file does not match any recognized
	// format. Fail closed.
	ErrUnparseable = errors.New("unparseable manifest signature")
)

// Verifier checks manifest signatures against a keyring and manifest hash
// entries against the working tree.
type Verifier struct {
	keyring *Keyring
}

// NewVerifier creates a verifier over the given keyring.
func NewVerifier(keyring *Keyring) *Verifier {
	return &Verifier{keyring: keyring}
}

// Verify runs both trust phases over the working tree at dir: the detached
// signature in manifest.sig must verify against an allowed signer matching
// requiredSigner, and every hash-<path> entry in the manifest must match the
// file's actual digest. Both phases must pass; any failure aborts.
func (v *Verifier) Verify(dir, requiredSigner string) error {
	manifestPath := filepath.Join(dir, manifest.Filename)
	payload, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	sigText, err := os.ReadFile(manifestPath + ".sig")
	if err != nil {
		return fmt.Errorf("%w: reading signature: %v", ErrBadSignature, err)
	}

	signer, err := v.VerifyDetached(payload, string(sigText))
	if err != nil {
		return err
	}
	if !signerMatches(signer, requiredSigner) {
		return fmt.Errorf("%w: signed by %s (%s), required %s",
			ErrWrongSigner, signer.Identity, signer.Fingerprint, requiredSigner)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	return v.verifyHashes(dir, m)
}

// VerifyDetached checks a detached signature line over payload and returns
// the keyring entry that produced it.
func (v *Verifier) VerifyDetached(payload []byte, sigText string) (Entry, error) {
	parts := strings.Split(strings.TrimSpace(sigText), ":")
	if len(parts) != 4 || parts[0] != signaturePrefix {
		return Entry{}, fmt.Errorf("%w: not a %s signature", ErrUnparseable, signaturePrefix)
	}
	pubBytes, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad public key encoding", ErrUnparseable)
	}
	sigBytes, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad signature encoding", ErrUnparseable)
	}
	pub, err := ssh.ParsePublicKey(pubBytes)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: bad public key", ErrUnparseable)
	}

	sig := &ssh.Signature{Format: parts[1], Blob: sigBytes}
	if err := pub.Verify(payload, sig); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	entry, ok := v.keyring.Lookup(pub)
	if !ok {
		return Entry{}, fmt.Errorf("%w: signing key %s not in keyring",
			ErrBadSignature, ssh.FingerprintSHA256(pub))
	}
	return entry, nil
}

// verifyHashes recomputes every declared per-file digest. A missing file or
// differing digest is a hash mismatch: a valid signature must not vouch for
// contents changed after signing.
func (v *Verifier) verifyHashes(dir string, m *manifest.Manifest) error {
	for _, h := range m.Hashes() {
		actual, err := digest.SHA256File(filepath.Join(dir, h.Path))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrHashMismatch, h.Path, err)
		}
		if actual != h.Digest {
			return fmt.Errorf("%w: %s: manifest says %s, file is %s",
				ErrHashMismatch, h.Path, h.Digest, actual)
		}
	}
	return nil
}

// signerMatches accepts a required-signer spec that is a substring of the
// signer's identity (user@host) or of its SHA256 key fingerprint.
func signerMatches(e Entry, requiredSigner string) bool {
	if requiredSigner == "" {
		return true
	}
	return strings.Contains(e.Identity, requiredSigner) ||
		strings.Contains(e.Fingerprint, requiredSigner)
}
