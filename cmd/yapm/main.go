package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/yapm/internal/config"
	"github.com/frederic-klein/yapm/internal/fetch"
	"github.com/frederic-klein/yapm/internal/installer"
	"github.com/frederic-klein/yapm/internal/manifest"
	"github.com/frederic-klein/yapm/internal/refspec"
	"github.com/frederic-klein/yapm/internal/trust"
)

var (
	verbose        bool
	requiredSigner string
	signingKeyPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "yapm",
		Short: "Yet Another Package Manager - fetches, verifies and installs packages",
		Long:  "YAPM resolves a package reference (github:, file:, uuid: or a URL) to a source tree, verifies it against a signed manifest, builds it and installs the artifacts.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	installCmd := &cobra.Command{
		Use:   "install <pkgref>",
		Short: "Fetch, verify, build and install a package",
		Args:  cobra.ExactArgs(1),
		RunE:  runInstall,
	}
	installCmd.Flags().StringVarP(&requiredSigner, "signer", "s", "", "Require the manifest to be signed by this signer (user@host or key fingerprint)")

	configCmd := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Get, set or list persisted settings",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runConfig,
	}

	makeManifestCmd := &cobra.Command{
		Use:   "make-manifest <build-descriptor> <manifest-out> [extra-files...]",
		Short: "Generate a manifest from a build descriptor, optionally signed",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runMakeManifest,
	}
	makeManifestCmd.Flags().StringVarP(&signingKeyPath, "sign", "s", "", "Sign the manifest with this SSH private key (empty value with config signing-key also works)")

	uninstallCmd := &cobra.Command{
		Use:   "uninstall <name>",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "uninstall is not implemented yet; remove %s from the pkg directory by hand\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(installCmd, configCmd, makeManifestCmd, uninstallCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logFn(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	ref, err := refspec.Parse(args[0])
	if err != nil {
		return err
	}

	home, err := config.Home()
	if err != nil {
		return err
	}
	cfg, err := config.Open(filepath.Join(home, "config"))
	if err != nil {
		return err
	}

	registryURL := fetch.DefaultRegistryURL
	if v, ok, err := cfg.Get(config.KeyRegistry); err != nil {
		return err
	} else if ok && v != "" {
		registryURL = v
	}

	fetcher := fetch.NewFetcher(registryURL, logFn)
	tree, err := fetcher.Fetch(ref)
	if err != nil {
		return err
	}
	// A failed install deliberately leaves the tree behind for inspection.
	logFn("Working tree: %s", tree.Dir)

	keyring, err := trust.LoadKeyring(filepath.Join(home, "allowed_signers"))
	if err != nil {
		return err
	}

	ins := installer.New(cfg, trust.NewVerifier(keyring), home, logFn)
	if err := ins.InstallFromSource(tree, requiredSigner); err != nil {
		return err
	}

	fmt.Printf("Installed %s\n", args[0])
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.OpenDefault()
	if err != nil {
		return err
	}

	switch len(args) {
	case 0:
		dump, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	case 1:
		v, ok, err := cfg.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s is not set", args[0])
		}
		fmt.Println(v)
		return nil
	default:
		return cfg.Set(args[0], args[1])
	}
}

func runMakeManifest(cmd *cobra.Command, args []string) error {
	descriptorPath, outPath := args[0], args[1]
	extraFiles := args[2:]

	var signer manifest.Signer
	if cmd.Flags().Changed("sign") {
		keyPath := signingKeyPath
		if keyPath == "" {
			cfg, err := config.OpenDefault()
			if err != nil {
				return err
			}
			if v, ok, err := cfg.Get(config.KeySigningKey); err != nil {
				return err
			} else if ok {
				keyPath = v
			}
		}
		s, err := trust.NewSignerFromKeyFile(keyPath)
		if err != nil {
			return err
		}
		signer = s
	}

	m, err := manifest.Generate(descriptorPath, outPath, extraFiles, signer)
	if err != nil {
		return err
	}

	name, _ := m.Get("name")
	vers, _ := m.Get("vers")
	if signer != nil {
		fmt.Printf("Wrote signed manifest for %s %s (%d hashed files) to %s\n", name, vers, len(m.Hashes()), outPath)
	} else {
		fmt.Printf("Wrote unsigned manifest for %s %s to %s\n", name, vers, outPath)
	}
	return nil
}
