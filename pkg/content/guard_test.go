package content

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := filepath.Join(t.TempDir(), "posts")

	cases := []struct {
		in   string
		want string
	}{
		{"", root},
		{"   ", filepath.Join(root, "   ")},
		{".", root},
		{"a ", filepath.Join(root, "a ")},
		{" d /x.md", filepath.Join(root, " d ", "x.md")},
		{"a/b.md", filepath.Join(root, "a", "b.md")},
		{"a/../b.md", filepath.Join(root, "b.md")},
		{"./assets//img.png", filepath.Join(root, "assets", "img.png")},
		{"/abs/looking", filepath.Join(root, "abs", "looking")},
	}
	for _, tc := range cases {
		got, err := Resolve(root, tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestResolve_RejectsEscape(t *testing.T) {
	root := filepath.Join(t.TempDir(), "posts")

	for _, in := range []string{"..", "../x", "a/../../x", "a/b/../../../x", "..\x00", "ok\x00"} {
		_, err := Resolve(root, in)
		require.Error(t, err, in)
		require.True(t, errors.Is(err, ErrPathTraversal), in)
	}
}

func TestResolve_SiblingPrefixIsOutside(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "foo")

	_, err := Resolve(root, "../foobar/x")
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestAssertSimpleName(t *testing.T) {
	for _, ok := range []string{"hello-world", "a.b", "index.md", "with space", "ünïcode"} {
		require.NoError(t, AssertSimpleName(ok), ok)
	}
	for _, bad := range []string{"", " ", ".", "..", "a..b", "a/b", `a\b`, "x\x00"} {
		err := AssertSimpleName(bad)
		require.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.png":                 "photo.png",
		"../../etc/passwd":          "passwd",
		`C:\Users\me\Desktop\a.jpg`: "a.jpg",
		"  spaced.txt ":             "spaced.txt",
		"dir/sub/file.tar.gz":       "file.tar.gz",
	}
	for in, want := range cases {
		got, err := SanitizeFileName(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "dir/", "..", "a/..", "x\x00.png"} {
		_, err := SanitizeFileName(bad)
		require.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestErrorKinds(t *testing.T) {
	err := &Error{Kind: KindNotFound, Op: "remove", Path: "a.md"}
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrAlreadyExists)
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, "NotFound: a.md", err.Message())

	withDetail := &Error{Kind: KindExternalProcessFailed, Detail: "exit 1: bad template"}
	require.Equal(t, "exit 1: bad template", withDetail.Message())

	require.Equal(t, "ok", ResultLabel(nil))
	require.Equal(t, "TreeTooDeep", ResultLabel(ErrTreeTooDeep))
	require.Equal(t, "Internal", ResultLabel(errors.New("x")))
}
