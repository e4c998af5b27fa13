package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	DefaultIndexFile      = "index.md"
	DefaultMaxUploadBytes = 50 << 20
	DefaultMaxFileBytes   = 5 << 20

	// deployLockKey cannot collide with a slug: AssertSimpleName rejects NUL.
	deployLockKey = "\x00deploy"
)

// Observer receives operation telemetry. It must be safe for concurrent use.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveUpload(bytes int64)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error, time.Duration) {}
func (nopObserver) ObserveUpload(int64)                           {}

// Options configures a Workspace. Only PostsRoot is required.
type Options struct {
	PostsRoot      string
	IndexFile      string
	MaxTreeDepth   int
	MaxUploadBytes int64
	MaxFileBytes   int64
	Locale         language.Tag

	Locker     Locker
	Scaffolder Scaffolder
	Deployer   Deployer
	Observer   Observer
}

// Workspace manages the posts root: every post lives in one first-level
// directory and no operation reaches outside it.
type Workspace struct {
	postsRoot      string
	indexFile      string
	maxTreeDepth   int
	maxUploadBytes int64
	maxFileBytes   int64
	locale         language.Tag

	locker     Locker
	scaffolder Scaffolder
	deployer   Deployer
	observer   Observer
	tracer     trace.Tracer
}

// Outcome describes the entry a mutation produced. Summary is set when the
// mutation touched the post's index document.
type Outcome struct {
	Path    string       `json:"path"`
	Summary *PostSummary `json:"summary,omitempty"`
}

func NewWorkspace(opts Options) (*Workspace, error) {
	if opts.PostsRoot == "" {
		return nil, errors.New("posts root is required")
	}
	root, err := filepath.Abs(opts.PostsRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve posts root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create posts root: %w", err)
	}

	w := &Workspace{
		postsRoot:      root,
		indexFile:      opts.IndexFile,
		maxTreeDepth:   opts.MaxTreeDepth,
		maxUploadBytes: opts.MaxUploadBytes,
		maxFileBytes:   opts.MaxFileBytes,
		locale:         opts.Locale,
		locker:         opts.Locker,
		scaffolder:     opts.Scaffolder,
		deployer:       opts.Deployer,
		observer:       opts.Observer,
		tracer:         otel.Tracer("inkwell/content"),
	}
	if w.indexFile == "" {
		w.indexFile = DefaultIndexFile
	}
	if err := AssertSimpleName(w.indexFile); err != nil {
		return nil, fmt.Errorf("index file: %w", err)
	}
	if w.maxTreeDepth <= 0 {
		w.maxTreeDepth = DefaultMaxTreeDepth
	}
	if w.maxUploadBytes <= 0 {
		w.maxUploadBytes = DefaultMaxUploadBytes
	}
	if w.maxFileBytes <= 0 {
		w.maxFileBytes = DefaultMaxFileBytes
	}
	if w.locker == nil {
		w.locker = NopLocker{}
	}
	if w.observer == nil {
		w.observer = nopObserver{}
	}
	return w, nil
}

func (w *Workspace) PostsRoot() string     { return w.postsRoot }
func (w *Workspace) IndexFile() string     { return w.indexFile }
func (w *Workspace) MaxUploadBytes() int64 { return w.maxUploadBytes }

// postRoot validates slug as a bare name and resolves it under the posts root.
// Dot-prefixed names are rejected so every operation agrees with ListPosts.
func (w *Workspace) postRoot(slug string) (string, error) {
	if err := AssertSimpleName(slug); err != nil {
		return "", err
	}
	if strings.HasPrefix(slug, ".") {
		return "", newError(KindInvalidName, "post", slug, "post names must not start with \".\"")
	}
	return Resolve(w.postsRoot, slug)
}

// ensurePostDirectory resolves slug and requires the post directory to exist.
func (w *Workspace) ensurePostDirectory(slug string) (string, error) {
	root, err := w.postRoot(slug)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", newError(KindNotFound, "post", slug, "post does not exist")
		}
		return "", fmt.Errorf("stat post %q: %w", slug, err)
	}
	if !info.IsDir() {
		return "", newError(KindNotFound, "post", slug, "post does not exist")
	}
	return root, nil
}

// createPostDirectory resolves slug and creates the post directory if needed.
// Used by the operations that may be the first write into a fresh post.
func (w *Workspace) createPostDirectory(slug string) (string, error) {
	root, err := w.postRoot(slug)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create post %q: %w", slug, err)
	}
	return root, nil
}

func (w *Workspace) isIndexPath(postRoot, abs string) bool {
	return abs == filepath.Join(postRoot, w.indexFile)
}

// withSummary attaches the post's summary to out when touched is set. A
// failure to summarize only drops the summary; the mutation already happened.
func (w *Workspace) withSummary(slug string, out Outcome, touched bool) Outcome {
	if !touched {
		return out
	}
	summary, err := w.summarize(slug)
	if err != nil {
		zap.L().Warn("Recompute post summary failed", zap.String("slug", slug), zap.Error(err))
		return out
	}
	out.Summary = &summary
	return out
}

// run executes fn inside a span, under the lock for keys, and reports the
// outcome to the observer. An empty keys list skips locking.
func (w *Workspace) run(ctx context.Context, op string, keys []string, fn func(ctx context.Context) error) error {
	ctx, span := w.tracer.Start(ctx, "content."+op)
	defer span.End()
	if len(keys) > 0 {
		span.SetAttributes(attribute.StringSlice("content.keys", keys))
	}

	start := time.Now()
	err := func() error {
		if len(keys) == 0 {
			return fn(ctx)
		}
		unlock, err := lockAll(ctx, w.locker, keys...)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		defer unlock()
		return fn(ctx)
	}()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	w.observer.ObserveOperation(op, err, time.Since(start))
	return err
}

// ResultLabel renders err as a low-cardinality label: "ok" or the kind name.
func ResultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
