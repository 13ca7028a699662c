package loading

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// AssetsDir is the folder under a mod's root holding asset subfolders.
const AssetsDir = "assets"

// AssetFolderAction imports the files under <mod>/assets/<subfolder>.
type AssetFolderAction struct {
	name       string
	subfolder  string
	importFn   ImportFunc
	extensions []string
	assets     AssetRegistrar
}

// FileError records one file that failed to import or register.
type FileError struct {
	Path string
	Key  string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("loading %s (%s): %v", e.Path, e.Key, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// ScanResult summarizes one scan of a mod's asset subfolder.
type ScanResult struct {
	// Files counts file visits; a file matched by several extensions counts once per match.
	Files    int
	Assets   int
	Failures []FileError
}

// Name returns the action's display label.
func (a *AssetFolderAction) Name() string { return a.name }

// Subfolder returns the folder under assets/ the action scans.
func (a *AssetFolderAction) Subfolder() string { return a.subfolder }

// Run scans the mod's folder. Per-file failures are logged on the mod's
// logger and never returned.
func (a *AssetFolderAction) Run(ctx context.Context, m Mod) error {
	a.Scan(ctx, m)
	return nil
}

// Scan imports every matching file for m and reports what happened.
//
// Postcondition: A missing subfolder yields a zero ScanResult and no log
// output. Each failed file produces exactly one error log entry.
func (a *AssetFolderAction) Scan(ctx context.Context, m Mod) ScanResult {
	var res ScanResult
	root := filepath.Join(m.PluginFolder(), AssetsDir, a.subfolder)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return res
	}

	logger := m.Logger()
	visit := func(file string) {
		res.Files++
		n, err := a.loadFile(root, file, m.ModID())
		res.Assets += n
		if err != nil {
			res.Failures = append(res.Failures, *err)
			logger.Error("loading asset failed",
				zap.String("action", a.name),
				zap.String("file", err.Path),
				zap.String("asset_path", err.Key),
				zap.Error(err.Err),
			)
		}
	}

	if len(a.extensions) == 0 {
		a.walk(ctx, root, "*", logger, visit)
		return res
	}
	for _, ext := range a.extensions {
		a.walk(ctx, root, "*."+ext, logger, visit)
	}
	return res
}

// walk visits every regular file below root whose base name matches pattern.
// Symlinked folders are descended into once per resolved target; unreadable
// directories and dangling links are logged and skipped. Cancellation stops
// the walk.
func (a *AssetFolderAction) walk(ctx context.Context, root, pattern string, logger *zap.Logger, visit func(string)) {
	seen := make(map[string]bool)
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		seen[resolved] = true
	}
	_ = a.walkDir(ctx, root, pattern, logger, visit, seen)
}

func (a *AssetFolderAction) walkDir(ctx context.Context, dir, pattern string, logger *zap.Logger, visit func(string), seen map[string]bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logger.Warn("walking asset folder",
				zap.String("action", a.name),
				zap.String("path", path),
				zap.Error(err),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return a.followLink(ctx, path, pattern, logger, visit, seen)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			visit(path)
		}
		return nil
	})
}

// followLink visits a symlinked file, or walks a symlinked folder under the
// link's own path so asset keys stay relative to the scan root.
func (a *AssetFolderAction) followLink(ctx context.Context, path, pattern string, logger *zap.Logger, visit func(string), seen map[string]bool) error {
	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("walking asset folder",
			zap.String("action", a.name),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	switch {
	case info.IsDir():
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil || seen[resolved] {
			return nil
		}
		seen[resolved] = true
		return a.walkDir(ctx, path, pattern, logger, visit, seen)
	case info.Mode().IsRegular():
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			visit(path)
		}
	}
	return nil
}

// loadFile imports one file and registers its assets, returning the number
// registered before the first failure.
// A panic in the import function or the registrar is recovered into the
// returned FileError.
func (a *AssetFolderAction) loadFile(root, file, modID string) (n int, ferr *FileError) {
	key, err := AssetPathKey(root, file)
	if err != nil {
		return 0, &FileError{Path: file, Err: err}
	}
	defer func() {
		if r := recover(); r != nil {
			ferr = &FileError{Path: file, Key: key, Err: fmt.Errorf("import panicked: %v", r)}
		}
	}()
	imported, err := a.importFn(file, key)
	if err != nil {
		return 0, &FileError{Path: file, Key: key, Err: fmt.Errorf("importing: %w", err)}
	}
	for _, asset := range imported {
		if err := a.assets.RegisterAsset(modID, asset.Name, asset.Asset); err != nil {
			return n, &FileError{Path: file, Key: key, Err: fmt.Errorf("registering %q: %w", asset.Name, err)}
		}
		n++
	}
	return len(imported), nil
}

// AssetPathKey derives the normalized key of file relative to root: every
// path segment lower-cased and joined with "/".
//
// Precondition: file is located under root.
func AssetPathKey(root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", file, err)
	}
	return NormalizeKey(rel, filepath.Separator), nil
}

// NormalizeKey splits rel on sep, lower-cases each segment, and joins the
// segments with "/".
func NormalizeKey(rel string, sep rune) string {
	segments := strings.Split(rel, string(sep))
	for i, s := range segments {
		segments[i] = strings.ToLower(s)
	}
	return strings.Join(segments, "/")
}
