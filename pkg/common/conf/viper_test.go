package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func useConfigDir(t *testing.T, dir string) {
	t.Helper()
	prev := *configDir
	*configDir = dir
	viper.Reset()
	t.Cleanup(func() {
		*configDir = prev
		viper.Reset()
	})
}

func TestInit_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("content:\n  root: /srv/posts\n"), 0o644))
	useConfigDir(t, dir)

	require.NoError(t, Init())
	require.Equal(t, "/srv/posts", viper.GetString("content.root"))
}

func TestInit_MissingFileIsOptional(t *testing.T) {
	useConfigDir(t, t.TempDir())

	require.NoError(t, Init())
	require.Error(t, Init(WithRequiredFile()))
}

func TestInit_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "studio.json"), []byte(`{"server":{"port":"8080"}}`), 0o644))
	useConfigDir(t, dir)
	t.Setenv("BLOG_SERVER_PORT", "9090")

	require.NoError(t, Init(WithFileName("studio"), WithFileType("json"), WithEnvPrefix("blog")))
	require.Equal(t, "9090", viper.GetString("server.port"))
}
