package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Fl0rencess720/inkwell/pkg/common/testutil"
	"github.com/stretchr/testify/require"
)

func names(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestBuildTree_Ordering(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"b.md":     "b",
		"a.md":     "a",
		"A/":       "",
		"zeta/":    "",
		"B.md":     "B",
		"Apple.md": "x",
	}))

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "zeta", "a.md", "Apple.md", "B.md", "b.md"}, names(nodes))
	require.Equal(t, NodeTypeDirectory, nodes[0].Type)
	require.Equal(t, NodeTypeFile, nodes[2].Type)
}

func TestBuildTree_DirectoriesBeforeFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"b.md": "b",
		"A/":   "",
		"a.md": "a",
	}))

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "a.md", "b.md"}, names(nodes))
}

func TestBuildTree_NestedPathsAndSizes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"index.md":           "# hi",
		"assets/img/cat.png": "12345",
		"assets/notes.txt":   "n",
	}))

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)

	byPath := map[string]Node{}
	Walk(nodes, func(n Node) { byPath[n.Path] = n })

	require.Contains(t, byPath, "assets")
	require.Contains(t, byPath, "assets/img")
	require.Equal(t, int64(5), byPath["assets/img/cat.png"].Size)
	require.NotNil(t, byPath["index.md"].ModifiedAt)
	require.Nil(t, byPath["assets"].ModifiedAt)
	require.Equal(t, []string{"img", "notes.txt"}, names(byPath["assets"].Children))
}

func TestBuildTree_HidesSystemArtifacts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		".DS_Store":         "x",
		"Thumbs.db":         "x",
		"desktop.ini":       "x",
		"._index.md":        "x",
		"sub/.DS_Store":     "x",
		".inkwell-1234.tmp": "x",
		"index.md":          "x",
		".gitkeep":          "x",
	}))

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"sub", ".gitkeep", "index.md"}, names(nodes))
	require.Empty(t, nodes[0].Children)
}

func TestBuildTree_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, testutil.WriteTree(outside, map[string]string{"secret.txt": "s"}))
	require.NoError(t, testutil.WriteTree(root, map[string]string{"index.md": "x"}))
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"index.md"}, names(nodes))
}

func TestBuildTree_TooDeep(t *testing.T) {
	root := t.TempDir()
	deep := strings.Repeat("d/", 5)
	require.NoError(t, testutil.WriteTree(root, map[string]string{deep: ""}))

	_, err := BuildTree(context.Background(), root, TreeOptions{MaxDepth: 5})
	require.NoError(t, err)

	_, err = BuildTree(context.Background(), root, TreeOptions{MaxDepth: 4})
	require.ErrorIs(t, err, ErrTreeTooDeep)
}

func TestBuildTree_MissingRoot(t *testing.T) {
	_, err := BuildTree(context.Background(), filepath.Join(t.TempDir(), "nope"), TreeOptions{})
	require.ErrorIs(t, err, ErrNotFound)

	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = BuildTree(context.Background(), file, TreeOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBuildTree_CanceledContext(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{"a/b/c.md": "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildTree(ctx, root, TreeOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildTree_EmptyDirectory(t *testing.T) {
	nodes, err := BuildTree(context.Background(), t.TempDir(), TreeOptions{})
	require.NoError(t, err)
	require.Empty(t, nodes)
}

func TestNode_JSONChildren(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, testutil.WriteTree(root, map[string]string{
		"empty/":    "",
		"full/a.md": "a",
		"top.md":    "t",
	}))

	nodes, err := BuildTree(context.Background(), root, TreeOptions{})
	require.NoError(t, err)

	data, err := json.Marshal(nodes)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)

	require.Equal(t, "empty", decoded[0]["name"])
	require.Equal(t, []any{}, decoded[0]["children"])

	require.Equal(t, "full", decoded[1]["name"])
	require.Len(t, decoded[1]["children"], 1)

	require.Equal(t, "top.md", decoded[2]["name"])
	require.NotContains(t, decoded[2], "children")
	require.Equal(t, float64(1), decoded[2]["size"])

	bare, err := json.Marshal(Node{Type: NodeTypeDirectory, Name: "d", Path: "d"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"directory","name":"d","path":"d","children":[]}`, string(bare))
}
