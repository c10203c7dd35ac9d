// FILE: lixenwraith/layered/args_test.go
package layered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Run("FlagForms", func(t *testing.T) {
		v, err := parseArgs([]string{
			"serve",
			"-x",
			"--server.port=8080",
			"--server.host", "example.org",
			"--debug",
			"--verbose",
			"--",
			"--name=",
		}, OriginArgs)
		require.NoError(t, err)

		assert.Equal(t, "8080", at(t, v, "server.port").s)
		assert.Equal(t, "example.org", at(t, v, "server.host").s)
		assert.Equal(t, "true", at(t, v, "debug").s)
		assert.Equal(t, "true", at(t, v, "verbose").s)
		assert.Equal(t, "", at(t, v, "name").s)
		assert.Equal(t, KindString, at(t, v, "name").Kind())

		_, ok := v.Get(MustParsePath("x"))
		assert.False(t, ok, "single-dash arguments are skipped")
		_, ok = v.Get(MustParsePath("serve"))
		assert.False(t, ok, "positional arguments are skipped")
	})

	t.Run("ValueLooksNumericStaysString", func(t *testing.T) {
		v, err := parseArgs([]string{"--retries", "3"}, OriginArgs)
		require.NoError(t, err)
		retries := at(t, v, "retries")
		assert.Equal(t, KindString, retries.Kind())
		n, err := retries.AsInt()
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("IndexedKeys", func(t *testing.T) {
		v, err := parseArgs([]string{"--tags[1]=b", `--labels."app.kubernetes.io/name"=web`}, OriginArgs)
		require.NoError(t, err)

		tags := at(t, v, "tags")
		items, ok := tags.Items()
		require.True(t, ok)
		require.Len(t, items, 2)
		assert.True(t, items[0].IsNil())
		assert.Equal(t, "b", items[1].s)

		assert.Equal(t, "web", at(t, v, `labels."app.kubernetes.io/name"`).s)
	})

	t.Run("OriginStamped", func(t *testing.T) {
		v, err := parseArgs([]string{"--a.b=1"}, "cli")
		require.NoError(t, err)
		assert.Equal(t, Origin("cli"), v.Origin())
		assert.Equal(t, Origin("cli"), at(t, v, "a").Origin())
		assert.Equal(t, Origin("cli"), at(t, v, "a.b").Origin())
	})

	t.Run("InvalidKey", func(t *testing.T) {
		_, err := parseArgs([]string{"--server..port=1"}, OriginArgs)
		assert.ErrorIs(t, err, ErrPathSyntax)

		_, err = Args([]string{"--a[x]=1"}).Collect()
		assert.ErrorIs(t, err, ErrSource)
		assert.ErrorIs(t, err, ErrPathSyntax)
	})

	t.Run("HugeIndex", func(t *testing.T) {
		_, err := Args([]string{"--a[999999999999]=x"}).Collect()
		assert.ErrorIs(t, err, ErrSource)
		assert.ErrorIs(t, err, ErrPathSyntax)
		assert.Contains(t, err.Error(), "exceeds maximum")

		cfg := New()
		assert.ErrorIs(t, cfg.SetOverride("a[999999999999]", "x"), ErrPathSyntax)
		assert.ErrorIs(t, cfg.SetDefault("a[65536]", "x"), ErrPathSyntax)
	})

	t.Run("LaterFlagWins", func(t *testing.T) {
		v, err := Args([]string{"--port=1", "--port=2"}).Collect()
		require.NoError(t, err)
		assert.Equal(t, "2", at(t, v, "port").s)
		assert.Equal(t, OriginArgs, v.Origin())
	})
}
