package app

import (
	"os"
	"path/filepath"

	domainerrors "yarasynth/internal/core/errors"
)

// Discover returns the package directories directly under root that hold a manifest, in
// lexical order.
func Discover(root, manifestName string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		code := domainerrors.CodePermissionDenied
		if os.IsNotExist(err) {
			code = domainerrors.CodeNotFound
		}
		return nil, domainerrors.AddContext(domainerrors.Wrap(err, code, "cannot read result directory"), domainerrors.CtxPath, root)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if hasManifest(dir, manifestName) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func hasManifest(dir, manifestName string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestName))
	return err == nil && info.Mode().IsRegular()
}
