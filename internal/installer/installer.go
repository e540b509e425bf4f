// Package installer turns a fetched working tree into installed artifacts:
// verify the manifest's trust chain, run the package's build/test/install
// commands, then register built shared libraries in the content-addressed
// library namespace.
package installer

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/frederic-klein/yapm/internal/config"
	"github.com/frederic-klein/yapm/internal/fetch"
	"github.com/frederic-klein/yapm/internal/manifest"
	"github.com/frederic-klein/yapm/internal/trust"
)

var (
	// ErrNoToolchain: no toolchain configured and none discoverable.
	ErrNoToolchain = errors.New("no toolchain configured")
	// ErrBuildFailed / ErrTestFailed / ErrInstallFailed wrap a non-zero
	// exit from the corresponding package command; the message carries the
	// literal command that failed.
	ErrBuildFailed   = errors.New("build command failed")
	ErrTestFailed    = errors.New("test command failed")
	ErrInstallFailed = errors.New("install command failed")
)

// Environment variables injected into every package command.
const (
	envToolchain = "YAPM_TOOLCHAIN"
	envPrefix    = "YAPM_PREFIX"
)

// defaultToolchainName is looked up on PATH when no toolchain is configured.
const defaultToolchainName = "cc"

// Runner executes one package command in a directory with an environment.
// The production implementation shells out; tests substitute a spy.
type Runner interface {
	Run(dir string, env []string, command string) error
}

// ExecRunner runs commands through sh -c, streaming output.
type ExecRunner struct{}

func (ExecRunner) Run(dir string, env []string, command string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Installer orchestrates a single synchronous install. One install is in
// flight per invocation; there is no locking against concurrent tools.
type Installer struct {
	Config   *config.Store
	Verifier *trust.Verifier
	Runner   Runner
	Home     string // yapm home holding pkg/ and lib/
	LookPath func(name string) (string, error)
	LogFn    func(format string, args ...interface{})
}

// New wires an installer with the production runner and PATH lookup.
func New(cfg *config.Store, verifier *trust.Verifier, home string, logFn func(string, ...interface{})) *Installer {
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	return &Installer{
		Config:   cfg,
		Verifier: verifier,
		Runner:   ExecRunner{},
		Home:     home,
		LookPath: exec.LookPath,
		LogFn:    logFn,
	}
}

// InstallFromSource runs the full install pipeline over tree. Every step is
// a hard gate. On success the working tree is deleted; on any failure it is
// left in place for inspection.
func (ins *Installer) InstallFromSource(tree *fetch.WorkingTree, requiredSigner string) error {
	if requiredSigner != "" {
		ins.LogFn("Verifying manifest signature (required signer %s)", requiredSigner)
		if err := ins.Verifier.Verify(tree.Dir, requiredSigner); err != nil {
			return err
		}
	}

	m, err := manifest.Load(filepath.Join(tree.Dir, manifest.Filename))
	if err != nil {
		return err
	}
	name, err := m.Required("name")
	if err != nil {
		return err
	}
	vers, err := m.Required("vers")
	if err != nil {
		return err
	}

	options, _, err := ins.configGet(config.KeyBuildOptions)
	if err != nil {
		return err
	}
	bootstrapCmd, bootstrapping := m.Get("bootstrap")
	buildCmd := manifestCommand(m, "build", "make", options)
	testCmd, hasTest := m.Get("test")
	installCmd := manifestCommand(m, "install", "make install", options)

	env := os.Environ()
	if bootstrapping {
		// Bootstrap builds provide their own toolchain; the bootstrap
		// command stands in for the build command.
		buildCmd = bootstrapCmd
	} else {
		toolchain, err := ins.resolveToolchain()
		if err != nil {
			return err
		}
		env = append(env, envToolchain+"="+toolchain)
	}

	installDir := ins.installDir(name, vers)
	ins.LogFn("Installing %s %s into %s", name, vers, installDir)
	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("clearing install directory: %w", err)
	}
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}
	env = append(env, envPrefix+"="+installDir)

	if _, err := os.Stat(filepath.Join(tree.Dir, "configure")); err == nil {
		ins.LogFn("Running configure")
		if err := ins.Runner.Run(tree.Dir, env, "./configure"); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrBuildFailed, "./configure", err)
		}
	}

	ins.LogFn("Running build: %s", buildCmd)
	if err := ins.Runner.Run(tree.Dir, env, buildCmd); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBuildFailed, buildCmd, err)
	}
	if hasTest && testCmd != "" {
		ins.LogFn("Running test: %s", testCmd)
		if err := ins.Runner.Run(tree.Dir, env, testCmd); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrTestFailed, testCmd, err)
		}
	}
	ins.LogFn("Running install: %s", installCmd)
	if err := ins.Runner.Run(tree.Dir, env, installCmd); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInstallFailed, installCmd, err)
	}

	if err := ins.registerLibraries(installDir); err != nil {
		return err
	}

	ins.LogFn("Install complete, removing working tree")
	if err := tree.Remove(); err != nil {
		return fmt.Errorf("removing working tree: %w", err)
	}
	return nil
}

// installDir is the deterministic per-version destination; each install of
// the same (name, vers) overwrites it.
func (ins *Installer) installDir(name, vers string) string {
	return filepath.Join(ins.Home, "pkg", name+"-"+vers)
}

// resolveToolchain returns the configured toolchain path, discovering and
// persisting one from PATH on first use.
func (ins *Installer) resolveToolchain() (string, error) {
	toolchain, ok, err := ins.configGet(config.KeyToolchain)
	if err != nil {
		return "", err
	}
	if ok && toolchain != "" {
		return toolchain, nil
	}

	discovered, err := ins.LookPath(defaultToolchainName)
	if err != nil {
		return "", fmt.Errorf("%w: set %q or install %s", ErrNoToolchain, config.KeyToolchain, defaultToolchainName)
	}
	ins.LogFn("Discovered toolchain %s", discovered)
	if err := ins.Config.Set(config.KeyToolchain, discovered); err != nil {
		return "", err
	}
	return discovered, nil
}

func (ins *Installer) configGet(key string) (string, bool, error) {
	if ins.Config == nil {
		return "", false, nil
	}
	return ins.Config.Get(key)
}

// manifestCommand returns the manifest's command for key, or the default
// with the configured options appended.
func manifestCommand(m *manifest.Manifest, key, fallback, options string) string {
	if cmd, ok := m.Get(key); ok && cmd != "" {
		return cmd
	}
	if options != "" {
		return fallback + " " + options
	}
	return fallback
}
