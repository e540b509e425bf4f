package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/frederic-klein/yapm/internal/digest"
)

// registerLibraries scans the top level of installDir for shared-library
// artifacts and links each into the library namespace under a
// content-addressed name, <sha1>-<basename>, so distinct builds of a
// same-named library never collide.
func (ins *Installer) registerLibraries(installDir string) error {
	entries, err := os.ReadDir(installDir)
	if err != nil {
		return fmt.Errorf("scanning install directory: %w", err)
	}

	libDir := filepath.Join(ins.Home, "lib")
	for _, entry := range entries {
		if entry.IsDir() || !isSharedLibrary(entry.Name()) {
			continue
		}
		target := filepath.Join(installDir, entry.Name())
		sum, err := digest.SHA1File(target)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(libDir, 0755); err != nil {
			return fmt.Errorf("creating library namespace: %w", err)
		}
		link := filepath.Join(libDir, sum+"-"+entry.Name())
		// Same hash and name means same content; replacing is harmless.
		if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("replacing library link: %w", err)
		}
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("registering library %s: %w", entry.Name(), err)
		}
		ins.LogFn("Registered library %s", filepath.Base(link))
	}
	return nil
}

// isSharedLibrary matches libfoo.so, libfoo.so.3 and libfoo.dylib.
func isSharedLibrary(name string) bool {
	if strings.HasSuffix(name, ".dylib") {
		return true
	}
	return strings.HasSuffix(name, ".so") || strings.Contains(name, ".so.")
}
