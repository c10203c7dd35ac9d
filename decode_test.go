// FILE: lixenwraith/layered/decode_test.go
package layered

import (
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScanWithComplexTypes tests scanning with the network and time hooks
func TestScanWithComplexTypes(t *testing.T) {
	type NetworkConfig struct {
		IP      net.IP        `toml:"ip"`
		IPNet   *net.IPNet    `toml:"subnet"`
		URL     *url.URL      `toml:"endpoint"`
		Timeout time.Duration `toml:"timeout"`
		Retry   struct {
			Count    int           `toml:"count"`
			Interval time.Duration `toml:"interval"`
		} `toml:"retry"`
	}

	type AppConfig struct {
		Network NetworkConfig     `toml:"network"`
		Tags    []string          `toml:"tags"`
		Ports   []int             `toml:"ports"`
		Labels  map[string]string `toml:"labels"`
	}

	cfg, err := NewBuilder().
		WithDefaults(&AppConfig{
			Network: NetworkConfig{Timeout: 30 * time.Second},
			Tags:    []string{"default"},
			Ports:   []int{8080},
			Labels:  map[string]string{"env": "dev"},
		}).
		AddSource(Env("APP").Separator("__").Vars(map[string]string{
			"APP__NETWORK__IP":       "192.168.1.100",
			"APP__NETWORK__SUBNET":   "192.168.1.0/24",
			"APP__NETWORK__ENDPOINT": "https://api.example.com:8443/v1",
			"APP__TAGS":              "prod,staging,test",
		})).
		AddSource(Memory(map[string]any{
			"network": map[string]any{
				"timeout": "2m30s",
				"retry":   map[string]any{"count": 5, "interval": "10s"},
			},
			"ports":  []any{80, 443, 8080},
			"labels": map[string]any{"env": "production", "version": "1.2.3"},
		})).
		Build()
	require.NoError(t, err)

	var result AppConfig
	require.NoError(t, cfg.Scan("", &result))

	assert.Equal(t, "192.168.1.100", result.Network.IP.String())
	assert.Equal(t, "192.168.1.0/24", result.Network.IPNet.String())
	assert.Equal(t, "https://api.example.com:8443/v1", result.Network.URL.String())
	assert.Equal(t, 150*time.Second, result.Network.Timeout)
	assert.Equal(t, 5, result.Network.Retry.Count)
	assert.Equal(t, 10*time.Second, result.Network.Retry.Interval)
	assert.Equal(t, []string{"prod", "staging", "test"}, result.Tags)
	assert.Equal(t, []int{80, 443, 8080}, result.Ports)
	assert.Equal(t, "production", result.Labels["env"])
	assert.Equal(t, "1.2.3", result.Labels["version"])
}

// TestScanWithBasePath tests scanning from nested paths
func TestScanWithBasePath(t *testing.T) {
	type ServerConfig struct {
		Host    string `toml:"host"`
		Port    int    `toml:"port"`
		Enabled bool   `toml:"enabled"`
	}

	cfg := New()
	require.NoError(t, cfg.SetDefault("app.server.host", "localhost"))
	require.NoError(t, cfg.SetDefault("app.server.port", 8080))
	require.NoError(t, cfg.SetDefault("app.server.enabled", true))
	require.NoError(t, cfg.SetDefault("app.database.host", "dbhost"))
	require.NoError(t, cfg.SetOverride("app.server.host", "appserver"))
	require.NoError(t, cfg.SetOverride("app.server.port", "9000"))

	var server ServerConfig
	require.NoError(t, cfg.Scan("app.server", &server))
	assert.Equal(t, "appserver", server.Host)
	assert.Equal(t, 9000, server.Port)
	assert.True(t, server.Enabled)

	var empty ServerConfig
	require.NoError(t, cfg.Scan("app.nonexistent", &empty))
	assert.Equal(t, "", empty.Host)
	assert.Equal(t, 0, empty.Port)
}

func TestScanErrors(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.SetDefault("server.port", "not-a-port"))

	t.Run("NonPointer", func(t *testing.T) {
		var target struct{}
		assert.Error(t, cfg.Scan("", target))
		assert.Error(t, cfg.Scan("", nil))
	})

	t.Run("BadPath", func(t *testing.T) {
		var target struct{}
		assert.ErrorIs(t, cfg.Scan("server..port", &target), ErrPathSyntax)
	})

	t.Run("ConversionFailure", func(t *testing.T) {
		var target struct {
			Port int `toml:"port"`
		}
		err := cfg.Scan("server", &target)
		var de *DeserializationError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "server", de.Path.String())
		assert.Equal(t, OriginDefault, de.Origin)
	})

	t.Run("InvalidIP", func(t *testing.T) {
		c := New()
		require.NoError(t, c.SetDefault("ip", "999.1.1.1"))
		var target struct {
			IP net.IP `toml:"ip"`
		}
		err := c.Scan("", &target)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid IP address")
	})
}

// TestScanValidation tests struct tag validation after scanning
func TestScanValidation(t *testing.T) {
	type ServerConfig struct {
		Host string `toml:"host" validate:"required,hostname"`
		Port int    `toml:"port" validate:"min=1,max=65535"`
	}

	t.Run("Passes", func(t *testing.T) {
		cfg, err := NewBuilder().
			WithStructValidation().
			AddSource(Memory(map[string]any{"server": map[string]any{"host": "example.org", "port": 443}})).
			Build()
		require.NoError(t, err)

		var server ServerConfig
		require.NoError(t, cfg.Scan("server", &server))
		assert.Equal(t, 443, server.Port)
	})

	t.Run("Fails", func(t *testing.T) {
		cfg, err := NewBuilder().
			WithStructValidation().
			AddSource(Memory(map[string]any{"server": map[string]any{"port": 70000}})).
			Build()
		require.NoError(t, err)

		var server ServerConfig
		err = cfg.Scan("server", &server)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
		assert.Contains(t, err.Error(), "Host")
		assert.Contains(t, err.Error(), "Port")
	})

	t.Run("DisabledByDefault", func(t *testing.T) {
		cfg := New()
		cfg.AddSource(Memory(map[string]any{"server": map[string]any{"port": 70000}}))
		var server ServerConfig
		assert.NoError(t, cfg.Scan("server", &server))
	})

	t.Run("NonStructTarget", func(t *testing.T) {
		cfg, err := NewBuilder().WithStructValidation().AddSource(Memory(map[string]any{"m": map[string]any{"a": "b"}})).Build()
		require.NoError(t, err)
		var m map[string]string
		require.NoError(t, cfg.Scan("m", &m))
		assert.Equal(t, "b", m["a"])
	})
}
