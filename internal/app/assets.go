package app

import (
	"os"
	"path/filepath"
)

const assetsDirName = "public"

// resolveAssetsDir finds the browser client when CLIENT_DIR is unset: a
// public/ directory next to the working directory or the executable, or one
// level above either.
func resolveAssetsDir() (string, bool) {
	if cwd, err := os.Getwd(); err == nil {
		if dir, ok := resolveAssetsDirFrom(cwd); ok {
			return dir, true
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if dir, ok := resolveAssetsDirFrom(filepath.Dir(exePath)); ok {
			return dir, true
		}
	}
	return "", false
}

func resolveAssetsDirFrom(base string) (string, bool) {
	candidates := []string{
		filepath.Join(base, assetsDirName),
		filepath.Join(base, "..", assetsDirName),
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}
