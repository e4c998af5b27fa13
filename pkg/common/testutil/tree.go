package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteTree materializes a directory fixture under root. Keys are
// slash-separated relative paths; a key ending in "/" creates a directory and
// ignores its value.
func WriteTree(root string, entries map[string]string) error {
	if root == "" {
		return fmt.Errorf("root is required")
	}

	for rel, data := range entries {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("create dir %s failed: %w", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create parent of %s failed: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return fmt.Errorf("write %s failed: %w", rel, err)
		}
	}
	return nil
}

// ListTree returns every path under root, slash-separated and sorted, with
// directories suffixed by "/". Used to assert that an operation left no
// stray files behind.
func ListTree(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
