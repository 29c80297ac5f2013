package util

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NormalizeSlashPath cleans a manifest path and converts backslashes to forward slashes.
func NormalizeSlashPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// BaseName returns the last element of a slash or backslash separated path.
func BaseName(p string) string {
	clean := NormalizeSlashPath(p)
	if clean == "" {
		return ""
	}
	return path.Base(clean)
}

// ContainsPathSeparator returns true when value includes either slash separator.
func ContainsPathSeparator(value string) bool {
	return strings.Contains(value, "/") || strings.Contains(value, "\\")
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SortedUnique returns the distinct values of in, sorted. The input is not modified.
func SortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		seen[v] = struct{}{}
	}
	return SortedStringKeys(seen)
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it into
// place, so readers never observe a partially written file.
func WriteFileAtomic(target string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", target, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}
	committed = true
	return nil
}

// WriteFileWithDirs creates parent directories (0755) and writes the file atomically with perm.
func WriteFileWithDirs(target string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(target)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return WriteFileAtomic(target, data, perm)
}
