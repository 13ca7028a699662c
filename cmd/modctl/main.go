// Package main provides modctl, an operator CLI for inspecting spec
// versions, mod manifests, asset folders, and stored startup reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "modctl",
		Short: "Inspect mods and the mod loader",
		Long: `modctl checks mod manifests, compares spec versions, dry-runs asset
folder scans, and reads startup reports saved by modhost.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSpecCmd(),
		newManifestCmd(),
		newScanCmd(),
		newReportCmd(),
	)
	return root
}
