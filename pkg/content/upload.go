package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Ingest writes an uploaded file to targetDir/fileName inside the post,
// replacing a file of the same name. size is the declared payload length, or
// -1 when unknown; either way nothing larger than the upload cap reaches the
// target path. The post directory and targetDir are created when missing.
func (w *Workspace) Ingest(ctx context.Context, slug, targetDir, fileName string, size int64, body io.Reader) (Outcome, error) {
	var out Outcome
	err := w.run(ctx, "upload", []string{slug}, func(ctx context.Context) error {
		if size > w.maxUploadBytes {
			return newError(KindPayloadTooLarge, "upload", fileName, fmt.Sprintf("payload exceeds %d bytes", w.maxUploadBytes))
		}
		name, err := SanitizeFileName(fileName)
		if err != nil {
			return err
		}
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		dir, err := Resolve(root, targetDir)
		if err != nil {
			return err
		}
		dst, err := Resolve(dir, name)
		if err != nil {
			return err
		}
		rel := relativeTo(root, dst)

		if info, err := os.Lstat(dst); err == nil && !info.Mode().IsRegular() {
			return newError(KindInvalidTarget, "upload", rel, "target is not a regular file")
		}
		if _, err := w.createPostDirectory(slug); err != nil {
			return err
		}
		if err := confine(root, dir, "upload", rel); err != nil {
			return err
		}

		n, err := writeAtomic(root, dst, &contextReader{ctx: ctx, r: body}, w.maxUploadBytes)
		if err != nil {
			if errors.Is(err, errLimitExceeded) {
				return newError(KindPayloadTooLarge, "upload", rel, fmt.Sprintf("payload exceeds %d bytes", w.maxUploadBytes))
			}
			return fmt.Errorf("write upload %q: %w", rel, err)
		}
		w.observer.ObserveUpload(n)
		out = w.withSummary(slug, Outcome{Path: rel}, w.isIndexPath(root, dst))
		return nil
	})
	return out, err
}

// contextReader stops a long upload copy once the request is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
