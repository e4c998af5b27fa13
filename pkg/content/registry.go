package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"go.uber.org/zap"
)

// frontMatterReadLimit bounds how much of an index document is read to find
// its front matter.
const frontMatterReadLimit = 64 << 10

// PostSummary describes one post directory.
type PostSummary struct {
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	HasIndex   bool      `json:"hasIndex"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Title      string    `json:"title,omitempty"`
	Draft      bool      `json:"draft,omitempty"`
}

type indexFrontMatter struct {
	Title string `yaml:"title"`
	Draft bool   `yaml:"draft"`
}

// ListPosts returns one summary per first-level directory of the posts root,
// in directory order. Files and dot-directories are not posts.
func (w *Workspace) ListPosts(ctx context.Context) ([]PostSummary, error) {
	var posts []PostSummary
	err := w.run(ctx, "list_posts", nil, func(ctx context.Context) error {
		entries, err := os.ReadDir(w.postsRoot)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return newError(KindNotFound, "list_posts", "", "posts root does not exist")
			}
			return fmt.Errorf("read posts root: %w", err)
		}

		posts = make([]PostSummary, 0, len(entries))
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			summary, err := w.summarize(entry.Name())
			if err != nil {
				// removed while listing
				zap.L().Debug("Skip post", zap.String("slug", entry.Name()), zap.Error(err))
				continue
			}
			posts = append(posts, summary)
		}
		return nil
	})
	return posts, err
}

// Post returns the summary of one post.
func (w *Workspace) Post(ctx context.Context, slug string) (PostSummary, error) {
	var summary PostSummary
	err := w.run(ctx, "get_post", nil, func(ctx context.Context) error {
		var err error
		summary, err = w.summarize(slug)
		return err
	})
	return summary, err
}

// summarize inspects the post directory and its index document. A missing or
// unreadable index is not an error.
func (w *Workspace) summarize(slug string) (PostSummary, error) {
	root, err := w.postRoot(slug)
	if err != nil {
		return PostSummary{}, err
	}
	dirInfo, err := os.Stat(root)
	if err != nil || !dirInfo.IsDir() {
		return PostSummary{}, &Error{Kind: KindNotFound, Op: "summarize", Path: slug, Detail: "post does not exist", Err: err}
	}

	summary := PostSummary{
		Name:       slug,
		Slug:       slug,
		ModifiedAt: dirInfo.ModTime().UTC(),
	}

	indexPath := filepath.Join(root, w.indexFile)
	indexInfo, err := os.Stat(indexPath)
	if err != nil || !indexInfo.Mode().IsRegular() {
		return summary, nil
	}
	summary.HasIndex = true
	summary.ModifiedAt = indexInfo.ModTime().UTC()

	if meta, err := readFrontMatter(indexPath); err != nil {
		zap.L().Debug("Parse index front matter failed", zap.String("slug", slug), zap.Error(err))
	} else {
		summary.Title = meta.Title
		summary.Draft = meta.Draft
	}
	return summary, nil
}

func readFrontMatter(path string) (indexFrontMatter, error) {
	var meta indexFrontMatter
	f, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer f.Close()

	if _, err := frontmatter.Parse(io.LimitReader(f, frontMatterReadLimit), &meta); err != nil {
		return indexFrontMatter{}, err
	}
	return meta, nil
}

// CreatePost hands the new name to the scaffolder. The workspace checks the
// name and the collision; what the scaffolder writes is its own business.
func (w *Workspace) CreatePost(ctx context.Context, name string) (PostSummary, error) {
	var summary PostSummary
	err := w.run(ctx, "create_post", []string{name}, func(ctx context.Context) error {
		root, err := w.postRoot(name)
		if err != nil {
			return err
		}
		found, err := exists(root)
		if err != nil {
			return fmt.Errorf("stat post %q: %w", name, err)
		}
		if found {
			return newError(KindAlreadyExists, "create_post", name, "")
		}
		if w.scaffolder == nil {
			return errors.New("create_post: scaffolder is not configured")
		}

		if err := w.scaffolder.Scaffold(ctx, name); err != nil {
			return &Error{Kind: KindExternalProcessFailed, Op: "create_post", Path: name, Detail: diagnostic(err), Err: err}
		}

		summary, err = w.summarize(name)
		if err != nil {
			zap.L().Warn("Scaffolder succeeded without creating the post directory", zap.String("slug", name))
			summary = PostSummary{Name: name, Slug: name, ModifiedAt: time.Now().UTC()}
		}
		return nil
	})
	return summary, err
}

// RenamePost renames a post directory. Both names must be bare names and the
// new one must be free.
func (w *Workspace) RenamePost(ctx context.Context, from, to string) (PostSummary, error) {
	var summary PostSummary
	err := w.run(ctx, "rename_post", []string{from, to}, func(ctx context.Context) error {
		src, err := w.postRoot(from)
		if err != nil {
			return err
		}
		dst, err := w.postRoot(to)
		if err != nil {
			return err
		}
		if err := move(w.postsRoot, src, dst); err != nil {
			return err
		}
		summary, err = w.summarize(to)
		return err
	})
	return summary, err
}

// DeletePost removes a post directory and everything in it.
func (w *Workspace) DeletePost(ctx context.Context, slug string) error {
	return w.run(ctx, "delete_post", []string{slug}, func(ctx context.Context) error {
		root, err := w.postRoot(slug)
		if err != nil {
			return err
		}
		return remove(w.postsRoot, root)
	})
}

// Deploy publishes the content repository. Deploys are serialized with each
// other but not with post edits.
func (w *Workspace) Deploy(ctx context.Context, message string) error {
	return w.run(ctx, "deploy", []string{deployLockKey}, func(ctx context.Context) error {
		if strings.TrimSpace(message) == "" {
			return newError(KindInvalidName, "deploy", "", "commit message is required")
		}
		if w.deployer == nil {
			return errors.New("deploy: deployer is not configured")
		}
		if err := w.deployer.Deploy(ctx, message); err != nil {
			return &Error{Kind: KindExternalProcessFailed, Op: "deploy", Detail: diagnostic(err), Err: err}
		}
		return nil
	})
}

// SortByRecency orders posts newest first; equal times fall back to slug.
func SortByRecency(posts []PostSummary) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].ModifiedAt.Equal(posts[j].ModifiedAt) {
			return posts[i].ModifiedAt.After(posts[j].ModifiedAt)
		}
		return posts[i].Slug < posts[j].Slug
	})
}
