package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/modloader/internal/manifest"
)

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Work with mod manifests",
	}
	cmd.AddCommand(newManifestCheckCmd())
	return cmd
}

func newManifestCheckCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "check <dir>",
		Short: "Validate the manifest in a mod folder",
		Long: `check loads swinfo.json (or swinfo.yaml) from <dir> and applies the field
rules of its spec version. With --all, <dir> is a mods directory and every
subfolder is checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !all {
				return checkManifest(out, args[0])
			}

			entries, err := os.ReadDir(args[0])
			if err != nil {
				return err
			}
			failed := 0
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				if err := checkManifest(out, filepath.Join(args[0], e.Name())); err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", e.Name(), err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d invalid manifest(s)", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "check every mod folder under <dir>")
	return cmd
}

func checkManifest(out io.Writer, dir string) error {
	m, err := manifest.LoadDir(dir)
	if err != nil {
		if errors.Is(err, manifest.ErrNoManifest) {
			return fmt.Errorf("no %s or %s in %s", manifest.JSONFile, manifest.YAMLFile, dir)
		}
		return err
	}
	fmt.Fprintf(out, "OK %s: id=%s name=%q spec=%s", m.Source, m.Identity(), m.Name, m.Spec)
	if m.Version != "" {
		fmt.Fprintf(out, " version=%s", m.Version)
	}
	fmt.Fprintln(out)
	return nil
}
