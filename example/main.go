// FILE: lixenwraith/layered/example/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lixenwraith/layered"
)

// LogLevel is an enumeration decoded by name.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
)

func (l *LogLevel) UnmarshalConfig(d *layered.Decoder) error {
	return d.Enum(
		layered.Unit("Debug", l, LevelDebug),
		layered.Unit("Info", l, LevelInfo),
		layered.Unit("Warn", l, LevelWarn),
	)
}

// AppConfig is extracted without reflection through UnmarshalConfig.
type AppConfig struct {
	Server struct {
		Host     string
		Port     int
		LogLevel LogLevel
		Timeout  time.Duration
	}
	FeatureFlags map[string]bool
	Upstreams    []string
}

func (c *AppConfig) UnmarshalConfig(d *layered.Decoder) error {
	return d.Record(
		layered.Field{Name: "server", Required: true, Decode: func(d *layered.Decoder) error {
			return d.Record(
				layered.Required("host", &c.Server.Host),
				layered.OptionalDefault("port", &c.Server.Port, 8080),
				layered.OptionalDefault("log_level", &c.Server.LogLevel, LevelInfo),
				layered.OptionalDefault("timeout", &c.Server.Timeout, 5*time.Second),
			)
		}},
		layered.Field{Name: "feature_flags", Decode: func(d *layered.Decoder) error {
			flags, err := layered.DecodeMap[bool](d)
			c.FeatureFlags = flags
			return err
		}},
		layered.Optional("upstreams", &c.Upstreams),
	)
}

const configTOML = `
upstreams = ["10.0.0.1", "10.0.0.2"]

[server]
host = "localhost"
port = 8080
log_level = "info"

[feature_flags]
enable_metrics = true
`

func main() {
	dir, err := os.MkdirTemp("", "layered-example")
	if err != nil {
		log.Fatalf("❌ Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	configFile := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configFile, []byte(configTOML), 0644); err != nil {
		log.Fatalf("❌ Failed to write %s: %v", configFile, err)
	}
	log.Printf("✅ Wrote %s", configFile)

	// Precedence, lowest first: defaults, file, optional overlay file,
	// environment, overrides.
	cfg, err := layered.NewBuilder().
		SetDefault("server.timeout", "30s").
		AddAsyncSource(layered.File(configFile)).
		WithOptionalFile(filepath.Join(dir, "local.yaml")).
		AddSource(layered.Env("APP").Separator("__").Vars(map[string]string{
			"APP__SERVER__PORT":      "8888",
			"APP__SERVER__LOG_LEVEL": "WARN",
		})).
		SetOverride("feature_flags.enable_tracing", true).
		WithValidator(func(c *layered.Config) error {
			port, err := c.Int64("server.port")
			if err != nil {
				return err
			}
			if port < 1024 {
				return fmt.Errorf("port %d is privileged", port)
			}
			return nil
		}).
		BuildContext(context.Background())
	if err != nil {
		log.Fatalf("❌ Build failed: %v", err)
	}

	var app AppConfig
	if err := layered.Deserialize(mustSnapshot(cfg), &app); err != nil {
		log.Fatalf("❌ Deserialize failed: %v", err)
	}
	log.Printf("✅ server %s:%d level=%d timeout=%s", app.Server.Host, app.Server.Port, app.Server.LogLevel, app.Server.Timeout)
	log.Printf("✅ flags=%v upstreams=%v", app.FeatureFlags, app.Upstreams)

	origin, _ := cfg.Origin("server.port")
	log.Printf("ℹ️  server.port comes from %s", origin)

	// A bad value surfaces with its path and origin.
	_, err = layered.TryGet[int](cfg, "server.host")
	var derr *layered.DeserializationError
	if errors.As(err, &derr) {
		log.Printf("ℹ️  expected failure: %v", err)
	}

	fmt.Print(cfg.Debug())
	if err := cfg.Dump(os.Stdout, layered.FormatYAML); err != nil {
		log.Fatalf("❌ Dump failed: %v", err)
	}
}

func mustSnapshot(cfg *layered.Config) layered.Value {
	snap, err := cfg.Snapshot()
	if err != nil {
		log.Fatalf("❌ Snapshot failed: %v", err)
	}
	return snap
}
