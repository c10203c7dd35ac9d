// FILE: lixenwraith/layered/discovery_test.go
package layered_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/layered"
)

// TestFileDiscovery tests config file discovery
func TestFileDiscovery(t *testing.T) {
	searchOnly := func(dirs ...string) layered.FileDiscoveryOptions {
		return layered.FileDiscoveryOptions{
			Name:  "myapp",
			Paths: dirs,
		}
	}

	t.Run("Defaults", func(t *testing.T) {
		opts := layered.DefaultDiscoveryOptions("myapp")
		assert.Equal(t, "MYAPP_CONFIG", opts.EnvVar)
		assert.Equal(t, "--config", opts.CLIFlag)
		assert.True(t, opts.UseXDG)
		assert.True(t, opts.UseCurrentDir)
	})

	t.Run("CLIFlag", func(t *testing.T) {
		opts := layered.DefaultDiscoveryOptions("myapp")
		assert.Equal(t, "/etc/a.toml", layered.DiscoverFile(opts, []string{"--verbose", "--config", "/etc/a.toml"}))
		assert.Equal(t, "/etc/b.toml", layered.DiscoverFile(opts, []string{"--config=/etc/b.toml"}))
	})

	t.Run("EnvVar", func(t *testing.T) {
		t.Setenv("MYAPP_CONFIG", "/from/env.yaml")
		opts := layered.DefaultDiscoveryOptions("myapp")
		assert.Equal(t, "/from/env.yaml", layered.DiscoverFile(opts, nil))
		assert.Equal(t, "/from/flag.yaml", layered.DiscoverFile(opts, []string{"--config", "/from/flag.yaml"}),
			"flag wins over the environment")
	})

	t.Run("SearchPaths", func(t *testing.T) {
		first, second := t.TempDir(), t.TempDir()
		want := writeFile(t, second, "myapp.yaml", "name: second\n")
		writeFile(t, second, "other.toml", "name = \"other\"\n")

		assert.Equal(t, want, layered.DiscoverFile(searchOnly(first, second), nil))

		earlier := writeFile(t, first, "myapp.json", `{"name": "first"}`)
		assert.Equal(t, earlier, layered.DiscoverFile(searchOnly(first, second), nil))
	})

	t.Run("ExtensionOrder", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "myapp.toml", "a = 1\n")
		yml := writeFile(t, dir, "myapp.yml", "a: 2\n")

		opts := searchOnly(dir)
		opts.Extensions = []string{".yml", "toml"}
		assert.Equal(t, yml, layered.DiscoverFile(opts, nil))
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.Empty(t, layered.DiscoverFile(searchOnly(t.TempDir()), nil))
	})

	t.Run("WithFileDiscovery", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "myapp.toml", "[server]\nport = 7000\n")

		cfg, err := layered.NewBuilder().
			SetDefault("server.port", 80).
			WithFileDiscovery(searchOnly(dir), nil).
			Build()
		require.NoError(t, err)

		port, err := cfg.Int64("server.port")
		require.NoError(t, err)
		assert.Equal(t, int64(7000), port)

		origin, _ := cfg.Origin("server.port")
		assert.Equal(t, layered.Origin(path), origin)

		cfg, err = layered.NewBuilder().
			SetDefault("server.port", 80).
			WithFileDiscovery(searchOnly(filepath.Join(dir, "empty")), nil).
			Build()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Sources())
	})
}
