package content

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	DefaultMaxTreeDepth = 64
)

// Node is one entry of a tree listing. Path is relative to the post root.
type Node struct {
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Size       int64      `json:"size,omitempty"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	Children   []Node     `json:"children,omitempty"`
}

// MarshalJSON always emits children for directories, as [] when empty, and
// never for files.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	if n.Type != NodeTypeDirectory {
		return json.Marshal(plain(n))
	}
	children := n.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		plain
		Children []Node `json:"children"`
	}{plain(n), children})
}

// TreeOptions controls BuildTree.
type TreeOptions struct {
	MaxDepth int
	// Locale drives the case-insensitive name collation; zero means language.Und.
	Locale language.Tag
}

// systemArtifacts are OS-generated files that never belong in a listing.
var systemArtifacts = map[string]struct{}{
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
	".localized":  {},
	"Icon\r":      {},
}

// IsSystemArtifact reports whether name is an OS metadata file, or one of our
// in-flight temp files, hidden from listings.
func IsSystemArtifact(name string) bool {
	if _, ok := systemArtifacts[name]; ok {
		return true
	}
	if strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix) {
		return true
	}
	return strings.HasPrefix(name, "._")
}

// BuildTree lists root recursively. Entries that vanish or become unreadable
// during the walk are skipped; the result is a point-in-time view.
func BuildTree(ctx context.Context, root string, opts TreeOptions) ([]Node, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxTreeDepth
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &Error{Kind: KindNotFound, Op: "tree", Path: filepath.Base(root), Err: err}
	}

	b := &treeBuilder{
		root:     root,
		maxDepth: opts.MaxDepth,
		collator: collate.New(opts.Locale, collate.IgnoreCase),
	}
	nodes, err := b.readDir(ctx, root, 0)
	if err != nil {
		// the root itself vanished between Stat and ReadDir
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, &Error{Kind: KindNotFound, Op: "tree", Path: filepath.Base(root), Err: err}
		}
		return nil, err
	}
	return nodes, nil
}

type treeBuilder struct {
	root     string
	maxDepth int
	// collate.Collator is not safe for concurrent use; one per build.
	collator *collate.Collator
}

func (b *treeBuilder) readDir(ctx context.Context, dir string, depth int) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > b.maxDepth {
		return nil, newError(KindTreeTooDeep, "tree", relativeTo(b.root, dir), "directory nesting exceeds limit")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if IsSystemArtifact(name) {
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		abs := filepath.Join(dir, name)
		node := Node{
			Name: name,
			Path: relativeTo(b.root, abs),
		}

		if entry.IsDir() {
			children, err := b.readDir(ctx, abs, depth+1)
			if err != nil {
				if KindOf(err) == KindTreeTooDeep || ctx.Err() != nil {
					return nil, err
				}
				zap.L().Debug("Skip unreadable directory", zap.String("path", abs), zap.Error(err))
				continue
			}
			node.Type = NodeTypeDirectory
			node.Children = children
			nodes = append(nodes, node)
			continue
		}

		fi, err := entry.Info()
		if err != nil {
			zap.L().Debug("Skip vanished file", zap.String("path", abs), zap.Error(err))
			continue
		}
		modTime := fi.ModTime().UTC()
		node.Type = NodeTypeFile
		node.Size = fi.Size()
		node.ModifiedAt = &modTime
		nodes = append(nodes, node)
	}

	b.sortNodes(nodes)
	return nodes, nil
}

// sortNodes orders directories before files, then by case-insensitive
// collation, falling back to byte order so equal-folding names stay stable.
func (b *treeBuilder) sortNodes(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		left, right := nodes[i], nodes[j]
		if left.Type != right.Type {
			return left.Type == NodeTypeDirectory
		}
		if c := b.collator.CompareString(left.Name, right.Name); c != 0 {
			return c < 0
		}
		return left.Name < right.Name
	})
}

// Walk calls fn for every node in depth-first order.
func Walk(nodes []Node, fn func(Node)) {
	for _, n := range nodes {
		fn(n)
		if len(n.Children) > 0 {
			Walk(n.Children, fn)
		}
	}
}
