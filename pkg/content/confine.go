package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// confine fails with PathTraversal when dir, or its nearest existing
// ancestor, resolves through a symlink to somewhere outside root. Resolve is
// lexical; this is the check against links already on disk.
func confine(root, dir, op, rel string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	existing := dir
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing || !within(root, parent) {
			return nil
		}
		existing = parent
	}

	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// dangling link
			return newError(KindPathTraversal, op, rel, "path resolves through a broken link")
		}
		return fmt.Errorf("resolve %q: %w", rel, err)
	}
	if !within(realRoot, real) {
		return newError(KindPathTraversal, op, rel, "path resolves outside the post")
	}
	return nil
}

// mkdirAllIn creates rel and its missing ancestors through r, so no segment
// can be a link leading out of the root.
func mkdirAllIn(r *os.Root, rel string) error {
	cur := ""
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." {
			continue
		}
		cur = filepath.Join(cur, part)
		if err := r.Mkdir(cur, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}

// openRootFor opens root as an os.Root and returns dst relative to it.
func openRootFor(root, dst string) (*os.Root, string, error) {
	rel, err := filepath.Rel(root, dst)
	if err != nil {
		return nil, "", err
	}
	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, "", err
	}
	return r, rel, nil
}
