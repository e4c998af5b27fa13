package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	tempPrefix = ".inkwell-"
	tempSuffix = ".tmp"
)

// FileContent is a file read for the editor.
type FileContent struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Content    []byte    `json:"-"`
}

// Tree lists the post directory. It takes no lock.
func (w *Workspace) Tree(ctx context.Context, slug string) ([]Node, error) {
	var nodes []Node
	err := w.run(ctx, "tree", nil, func(ctx context.Context) error {
		root, err := w.ensurePostDirectory(slug)
		if err != nil {
			return err
		}
		nodes, err = BuildTree(ctx, root, TreeOptions{MaxDepth: w.maxTreeDepth, Locale: w.locale})
		return err
	})
	return nodes, err
}

// CreateDirectory creates parent/name inside the post, creating the post
// directory and any missing ancestors. It is not idempotent: an existing
// target is AlreadyExists.
func (w *Workspace) CreateDirectory(ctx context.Context, slug, parent, name string) (Outcome, error) {
	var out Outcome
	err := w.run(ctx, "create_directory", []string{slug}, func(ctx context.Context) error {
		if err := AssertSimpleName(name); err != nil {
			return err
		}
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		parentAbs, err := Resolve(root, parent)
		if err != nil {
			return err
		}
		target, err := Resolve(root, filepath.Join(filepath.FromSlash(parent), name))
		if err != nil {
			return err
		}
		if _, err := w.createPostDirectory(slug); err != nil {
			return err
		}

		found, err := exists(target)
		if err != nil {
			return fmt.Errorf("stat %q: %w", relativeTo(root, target), err)
		}
		if found {
			return newError(KindAlreadyExists, "create_directory", relativeTo(root, target), "")
		}
		if err := confine(root, target, "create_directory", relativeTo(root, target)); err != nil {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory under %q: %w", relativeTo(root, parentAbs), err)
		}
		out = Outcome{Path: relativeTo(root, target)}
		return nil
	})
	return out, err
}

// Rename moves source to target inside one post. Target must not exist;
// collisions are reported, never merged.
func (w *Workspace) Rename(ctx context.Context, slug, source, target string) (Outcome, error) {
	var out Outcome
	err := w.run(ctx, "rename", []string{slug}, func(ctx context.Context) error {
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		src, err := Resolve(root, source)
		if err != nil {
			return err
		}
		dst, err := Resolve(root, target)
		if err != nil {
			return err
		}
		if _, err := w.ensurePostDirectory(slug); err != nil {
			return err
		}

		if err := move(root, src, dst); err != nil {
			return err
		}
		out = w.withSummary(slug, Outcome{Path: relativeTo(root, dst)},
			w.isIndexPath(root, src) || w.isIndexPath(root, dst))
		return nil
	})
	return out, err
}

// move renames src to dst, both already resolved under root.
func move(root, src, dst string) error {
	srcRel, dstRel := relativeTo(root, src), relativeTo(root, dst)
	if src == root || dst == root {
		return newError(KindInvalidTarget, "rename", srcRel, "cannot move the root directory")
	}

	found, err := exists(src)
	if err != nil {
		return fmt.Errorf("stat %q: %w", srcRel, err)
	}
	if !found {
		return newError(KindNotFound, "rename", srcRel, "")
	}
	found, err = exists(dst)
	if err != nil {
		return fmt.Errorf("stat %q: %w", dstRel, err)
	}
	if found {
		return newError(KindAlreadyExists, "rename", dstRel, "")
	}
	if within(src, dst) {
		return newError(KindInvalidTarget, "rename", dstRel, "cannot move a directory into itself")
	}

	if err := confine(root, filepath.Dir(dst), "rename", dstRel); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent of %q: %w", dstRel, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %q to %q: %w", srcRel, dstRel, err)
	}
	return nil
}

// Remove deletes a file or a directory tree inside the post. Removing an
// absent path is NotFound; callers wanting idempotence check first.
func (w *Workspace) Remove(ctx context.Context, slug, target string) (Outcome, error) {
	var out Outcome
	err := w.run(ctx, "remove", []string{slug}, func(ctx context.Context) error {
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		abs, err := Resolve(root, target)
		if err != nil {
			return err
		}
		if _, err := w.ensurePostDirectory(slug); err != nil {
			return err
		}

		if err := remove(root, abs); err != nil {
			return err
		}
		out = w.withSummary(slug, Outcome{Path: relativeTo(root, abs)}, w.isIndexPath(root, abs))
		return nil
	})
	return out, err
}

func remove(root, abs string) error {
	rel := relativeTo(root, abs)
	if abs == root {
		return newError(KindInvalidTarget, "remove", rel, "cannot remove the root directory")
	}
	found, err := exists(abs)
	if err != nil {
		return fmt.Errorf("stat %q: %w", rel, err)
	}
	if !found {
		return newError(KindNotFound, "remove", rel, "")
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("remove %q: %w", rel, err)
	}
	return nil
}

// ReadFile loads one file of the post for editing.
func (w *Workspace) ReadFile(ctx context.Context, slug, path string) (FileContent, error) {
	var fc FileContent
	err := w.run(ctx, "read_file", nil, func(ctx context.Context) error {
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		abs, err := Resolve(root, path)
		if err != nil {
			return err
		}
		if _, err := w.ensurePostDirectory(slug); err != nil {
			return err
		}

		rel := relativeTo(root, abs)
		info, err := os.Lstat(abs)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return newError(KindNotFound, "read_file", rel, "")
			}
			return fmt.Errorf("stat %q: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return newError(KindInvalidTarget, "read_file", rel, "not a regular file")
		}
		if info.Size() > w.maxFileBytes {
			return newError(KindPayloadTooLarge, "read_file", rel, fmt.Sprintf("file exceeds %d bytes", w.maxFileBytes))
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("read %q: %w", rel, err)
		}
		fc = FileContent{
			Path:       rel,
			Size:       int64(len(data)),
			ModifiedAt: info.ModTime().UTC(),
			Content:    data,
		}
		return nil
	})
	return fc, err
}

// WriteFile saves editor content, replacing any existing file at path.
func (w *Workspace) WriteFile(ctx context.Context, slug, path string, data []byte) (Outcome, error) {
	var out Outcome
	err := w.run(ctx, "write_file", []string{slug}, func(ctx context.Context) error {
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		abs, err := Resolve(root, path)
		if err != nil {
			return err
		}
		rel := relativeTo(root, abs)
		if abs == root {
			return newError(KindInvalidTarget, "write_file", rel, "path is required")
		}
		if int64(len(data)) > w.maxFileBytes {
			return newError(KindPayloadTooLarge, "write_file", rel, fmt.Sprintf("content exceeds %d bytes", w.maxFileBytes))
		}
		if _, err := w.ensurePostDirectory(slug); err != nil {
			return err
		}
		if info, err := os.Lstat(abs); err == nil && !info.Mode().IsRegular() {
			return newError(KindInvalidTarget, "write_file", rel, "not a regular file")
		}

		if err := confine(root, filepath.Dir(abs), "write_file", rel); err != nil {
			return err
		}
		if _, err := writeAtomic(root, abs, bytes.NewReader(data), -1); err != nil {
			return fmt.Errorf("write %q: %w", rel, err)
		}
		out = w.withSummary(slug, Outcome{Path: rel}, w.isIndexPath(root, abs))
		return nil
	})
	return out, err
}

// errLimitExceeded is returned by writeAtomic when body is longer than limit.
var errLimitExceeded = errors.New("limit exceeded")

// writeAtomic streams body into a temp file next to dst and renames it over
// dst. Missing parents and the temp file are created through an os.Root
// opened on root. With limit >= 0, reading more than limit bytes aborts the
// write and leaves nothing behind.
func writeAtomic(root, dst string, body io.Reader, limit int64) (int64, error) {
	r, relDst, err := openRootFor(root, dst)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	relDir := filepath.Dir(relDst)
	if err := mkdirAllIn(r, relDir); err != nil {
		return 0, fmt.Errorf("create parent: %w", err)
	}

	relTmp := filepath.Join(relDir, tempPrefix+uuid.NewString()+tempSuffix)
	f, err := r.OpenFile(relTmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	cleanup := func() {
		_ = f.Close()
		_ = r.Remove(relTmp)
	}

	src := body
	if limit >= 0 {
		src = io.LimitReader(body, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		cleanup()
		return n, err
	}
	if limit >= 0 && n > limit {
		cleanup()
		return n, errLimitExceeded
	}
	if err := f.Close(); err != nil {
		_ = r.Remove(relTmp)
		return n, err
	}
	if err := os.Rename(filepath.Join(root, relTmp), dst); err != nil {
		_ = r.Remove(relTmp)
		return n, err
	}
	return n, nil
}
