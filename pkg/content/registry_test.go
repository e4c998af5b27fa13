package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exitFailure struct {
	output string
}

func (e *exitFailure) Error() string  { return "exit status 1" }
func (e *exitFailure) Output() string { return e.output }

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestListPosts(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	seed(t, ws, map[string]string{
		"alpha/index.md":  "---\ntitle: Alpha\ndraft: true\n---\nbody",
		"beta/notes.md":   "no index",
		"gamma/index.md/": "",
		".git/HEAD":       "ref",
		"README.md":       "not a post",
	})

	posts, err := ws.ListPosts(context.Background())
	require.NoError(t, err)

	bySlug := map[string]PostSummary{}
	for _, p := range posts {
		bySlug[p.Slug] = p
	}
	require.Len(t, bySlug, 3)

	require.True(t, bySlug["alpha"].HasIndex)
	require.Equal(t, "Alpha", bySlug["alpha"].Title)
	require.True(t, bySlug["alpha"].Draft)
	require.Equal(t, "alpha", bySlug["alpha"].Name)

	require.False(t, bySlug["beta"].HasIndex)
	require.Empty(t, bySlug["beta"].Title)

	// an index.md directory is not an index document
	require.False(t, bySlug["gamma"].HasIndex)
}

func TestListPosts_EmptyRoot(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	posts, err := ws.ListPosts(context.Background())
	require.NoError(t, err)
	require.NotNil(t, posts)
	require.Empty(t, posts)
}

func TestPost_UsesIndexModTime(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	seed(t, ws, map[string]string{"p/index.md": "x"})

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(ws.PostsRoot(), "p", "index.md"), stamp)

	summary, err := ws.Post(context.Background(), "p")
	require.NoError(t, err)
	require.True(t, summary.ModifiedAt.Equal(stamp))

	_, err = ws.Post(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = ws.Post(context.Background(), "..")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestSortByRecency(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := []PostSummary{
		{Slug: "old", ModifiedAt: base},
		{Slug: "new", ModifiedAt: base.Add(2 * time.Hour)},
		{Slug: "tie-b", ModifiedAt: base.Add(time.Hour)},
		{Slug: "tie-a", ModifiedAt: base.Add(time.Hour)},
	}

	SortByRecency(posts)

	slugs := make([]string, 0, len(posts))
	for _, p := range posts {
		slugs = append(slugs, p.Slug)
	}
	require.Equal(t, []string{"new", "tie-a", "tie-b", "old"}, slugs)
}

func TestCreatePost_ScaffolderWithoutDirectory(t *testing.T) {
	var calls []string
	ws := newTestWorkspace(t, func(o *Options) {
		o.Scaffolder = ScaffolderFunc(func(_ context.Context, name string) error {
			calls = append(calls, name)
			return nil
		})
	})

	summary, err := ws.CreatePost(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", summary.Slug)
	require.False(t, summary.HasIndex)
	require.Equal(t, []string{"hello"}, calls)
}

func TestCreatePost_Scaffolded(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	ws.scaffolder = ScaffolderFunc(func(_ context.Context, name string) error {
		dir := filepath.Join(ws.PostsRoot(), name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		return os.WriteFile(filepath.Join(dir, "index.md"), []byte("---\ntitle: Fresh\n---\n"), 0o644)
	})

	summary, err := ws.CreatePost(context.Background(), "fresh")
	require.NoError(t, err)
	require.True(t, summary.HasIndex)
	require.Equal(t, "Fresh", summary.Title)

	_, err = ws.CreatePost(context.Background(), "fresh")
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreatePost_RejectsNamesBeforeScaffolding(t *testing.T) {
	called := false
	ws := newTestWorkspace(t, func(o *Options) {
		o.Scaffolder = ScaffolderFunc(func(context.Context, string) error {
			called = true
			return nil
		})
	})

	for _, name := range []string{"", "../x", "a/b", ".", "x\x00"} {
		_, err := ws.CreatePost(context.Background(), name)
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
	require.False(t, called)
}

func TestCreatePost_ScaffolderFailureSurfacesOutput(t *testing.T) {
	ws := newTestWorkspace(t, func(o *Options) {
		o.Scaffolder = ScaffolderFunc(func(context.Context, string) error {
			return &exitFailure{output: "Error: archetype \"post\" not found\n"}
		})
	})

	_, err := ws.CreatePost(context.Background(), "p")
	require.ErrorIs(t, err, ErrExternalProcessFailed)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "Error: archetype \"post\" not found\n", cerr.Message())
}

func TestCreatePost_NoScaffolder(t *testing.T) {
	ws := newTestWorkspace(t, nil)

	_, err := ws.CreatePost(context.Background(), "p")
	require.Error(t, err)
	require.Equal(t, KindInternal, KindOf(err))
}

func TestRenamePost(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	ctx := context.Background()
	seed(t, ws, map[string]string{
		"draft/index.md": "---\ntitle: Draft\n---\n",
		"taken/":         "",
	})

	summary, err := ws.RenamePost(ctx, "draft", "final")
	require.NoError(t, err)
	require.Equal(t, "final", summary.Slug)
	require.Equal(t, "Draft", summary.Title)
	require.NoDirExists(t, filepath.Join(ws.PostsRoot(), "draft"))

	_, err = ws.RenamePost(ctx, "final", "taken")
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.DirExists(t, filepath.Join(ws.PostsRoot(), "final"))

	_, err = ws.RenamePost(ctx, "final", "../escape")
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = ws.RenamePost(ctx, "ghost", "other")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePost(t *testing.T) {
	ws := newTestWorkspace(t, nil)
	ctx := context.Background()
	seed(t, ws, map[string]string{"p/assets/a.png": "a"})

	require.NoError(t, ws.DeletePost(ctx, "p"))
	require.NoDirExists(t, filepath.Join(ws.PostsRoot(), "p"))
	require.DirExists(t, ws.PostsRoot())

	require.ErrorIs(t, ws.DeletePost(ctx, "p"), ErrNotFound)
	require.ErrorIs(t, ws.DeletePost(ctx, ""), ErrInvalidName)
}

func TestDeploy(t *testing.T) {
	var messages []string
	ws := newTestWorkspace(t, func(o *Options) {
		o.Deployer = DeployerFunc(func(_ context.Context, message string) error {
			messages = append(messages, message)
			if message == "fail" {
				return &exitFailure{output: "rejected: non-fast-forward"}
			}
			return nil
		})
	})
	ctx := context.Background()

	require.NoError(t, ws.Deploy(ctx, "publish hello"))
	require.ErrorIs(t, ws.Deploy(ctx, "  "), ErrInvalidName)

	err := ws.Deploy(ctx, "fail")
	require.ErrorIs(t, err, ErrExternalProcessFailed)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "rejected: non-fast-forward", cerr.Message())

	require.Equal(t, []string{"publish hello", "fail"}, messages)
}

func TestDeploy_Serialized(t *testing.T) {
	var active, peak int32
	var mu sync.Mutex
	ws := newTestWorkspace(t, func(o *Options) {
		o.Deployer = DeployerFunc(func(context.Context, string) error {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ws.Deploy(context.Background(), "m"))
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), peak)
}

func TestHiddenDirectoriesAreNotAddressableAsPosts(t *testing.T) {
	ws := newTestWorkspace(t, func(o *Options) {
		o.Scaffolder = ScaffolderFunc(func(context.Context, string) error { return nil })
	})
	ctx := context.Background()
	seed(t, ws, map[string]string{".git/HEAD": "ref", "visible/index.md": "x"})

	_, err := ws.Post(ctx, ".git")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.Tree(ctx, ".git")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.ReadFile(ctx, ".git", "HEAD")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.WriteFile(ctx, ".git", "HEAD", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.CreateDirectory(ctx, ".hidden", "", "x")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.Ingest(ctx, ".hidden", "", "x.png", 1, strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.CreatePost(ctx, ".draft")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = ws.RenamePost(ctx, "visible", ".visible")
	require.ErrorIs(t, err, ErrInvalidName)
	require.ErrorIs(t, ws.DeletePost(ctx, ".git"), ErrInvalidName)

	require.FileExists(t, filepath.Join(ws.PostsRoot(), ".git", "HEAD"))
	require.NoDirExists(t, filepath.Join(ws.PostsRoot(), ".hidden"))
	require.DirExists(t, filepath.Join(ws.PostsRoot(), "visible"))

	posts, err := ws.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, "visible", posts[0].Slug)
}
