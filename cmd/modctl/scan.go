package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/modloader/internal/assets"
	"github.com/cory-johannsen/modloader/internal/importers"
	"github.com/cory-johannsen/modloader/internal/loading"
	"github.com/cory-johannsen/modloader/internal/manifest"
	"github.com/cory-johannsen/modloader/internal/mod"
	"github.com/cory-johannsen/modloader/internal/spec"
)

func newScanCmd() *cobra.Command {
	var importer string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "scan <mod-dir> <subfolder> [ext...]",
		Short: "Dry-run an asset folder scan and print the asset path keys",
		Long: `scan walks <mod-dir>/assets/<subfolder> exactly as an asset loading action
would and prints the key of every asset found. Without --importer files are
not read. Extensions are matched case-sensitively.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			importFn := keyOnly
			if importer != "" {
				fn, err := importers.Lookup(importer)
				if err != nil {
					return err
				}
				importFn = fn
			}

			logger := zap.NewNop()
			if verbose {
				dev, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				logger = dev
			}

			target, err := scanTarget(args[0], logger)
			if err != nil {
				return err
			}

			store := assets.NewManager()
			reg := loading.NewRegistry(store, nil)
			reg.AddAssetLoadingAction(args[1], "scan", importFn, args[2:]...)
			action := reg.Actions()[0].(*loading.AssetFolderAction)
			res := action.Scan(cmd.Context(), target)

			out := cmd.OutOrStdout()
			for _, name := range store.Names(target.ModID()) {
				fmt.Fprintln(out, name)
			}
			for _, f := range res.Failures {
				fmt.Fprintf(out, "FAIL %s: %v\n", f.Key, f.Err)
			}
			fmt.Fprintf(out, "%d file(s), %d asset(s), %d failure(s)\n", res.Files, res.Assets, len(res.Failures))
			if len(res.Failures) > 0 {
				return fmt.Errorf("%d file(s) failed", len(res.Failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&importer, "importer", "", "import files with raw, text, or yaml")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log scan progress")
	return cmd
}

// scanTarget builds the mod to scan. A folder without a manifest is scanned
// under its folder name.
func scanTarget(dir string, logger *zap.Logger) (*mod.Mod, error) {
	m, err := manifest.LoadDir(dir)
	if errors.Is(err, manifest.ErrNoManifest) {
		m = &manifest.Manifest{Spec: spec.Default, ModID: filepath.Base(dir), Name: filepath.Base(dir)}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return mod.New(dir, m, logger), nil
}

func keyOnly(_ string, key string) ([]loading.ImportedAsset, error) {
	return []loading.ImportedAsset{{Name: key}}, nil
}
