package fetch

import (
	"fmt"
	"os/exec"
)

// VcsClient is the narrow version-control capability the fetcher needs.
type VcsClient interface {
	Clone(url, dir string) error
	Checkout(dir, commit string) error
}

// GitClient shells out to the git binary.
type GitClient struct{}

// Clone clones url into dir.
func (GitClient) Clone(url, dir string) error {
	cmd := exec.Command("git", "clone", url, dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone %s: %w\n%s", url, err, out)
	}
	return nil
}

// Checkout checks out commit inside the repository at dir.
func (GitClient) Checkout(dir, commit string) error {
	cmd := exec.Command("git", "-C", dir, "checkout", commit)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s: %w\n%s", commit, err, out)
	}
	return nil
}
