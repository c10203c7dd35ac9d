// File: lixenwraith/layered/convenience.go
package layered

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Quick creates a Config with a single call, layering, from lowest to
// highest precedence: the struct defaults, the optional configFile, the
// environment under envPrefix (nested keys separated by "__") and the
// process's command-line flags.
func Quick(structDefaults any, envPrefix, configFile string) (*Config, error) {
	b := NewBuilder().WithDefaults(structDefaults)
	if configFile != "" {
		b.WithOptionalFile(configFile)
	}
	if envPrefix != "" {
		b.WithEnvPrefix(envPrefix)
	}
	return b.WithArgs(os.Args[1:]).Build()
}

// MustQuick is like Quick but panics on error.
func MustQuick(structDefaults any, envPrefix, configFile string) *Config {
	cfg, err := Quick(structDefaults, envPrefix, configFile)
	if err != nil {
		panic(fmt.Sprintf("config initialization failed: %v", err))
	}
	return cfg
}

// Validate checks that every path resolves to a non-nil value.
// All failures are reported together.
func (c *Config) Validate(required ...string) error {
	var errs []error
	for _, path := range required {
		v, err := c.Get(path)
		switch {
		case err != nil:
			errs = append(errs, err)
		case v.IsNil():
			p, _ := ParsePath(path)
			errs = append(errs, &NotFoundError{Path: p, Origin: v.Origin()})
		}
	}
	return errors.Join(errs...)
}

// Debug lists every leaf of the snapshot with the origin that determined it.
func (c *Config) Debug() string {
	snap, err := c.Snapshot()
	var b strings.Builder
	b.WriteString("Configuration Debug Info:\n")
	if err != nil {
		fmt.Fprintf(&b, "  (stale: %v)\n", err)
	}
	for _, l := range flatten(snap, nil) {
		fmt.Fprintf(&b, "  %s = %s  [%s]\n", l.path, l.value, l.value.Origin().display())
	}
	return b.String()
}

// Dump writes the snapshot to w in format.
func (c *Config) Dump(w io.Writer, format Format) error {
	snap, err := c.Snapshot()
	if err != nil {
		return err
	}
	data, err := Encode(snap, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Save writes the snapshot to path atomically, in the format its extension
// names.
func (c *Config) Save(path string) error {
	format, ok := FormatForPath(path)
	if !ok {
		return fmt.Errorf("%w: no format registered for '%s'", ErrUnsupportedFormat, path)
	}
	snap, err := c.Snapshot()
	if err != nil {
		return err
	}
	data, err := Encode(snap, format)
	if err != nil {
		return fmt.Errorf("failed to marshal config data to %s: %w", format.Name, err)
	}
	return atomicWriteFile(path, data)
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // no-op once renamed

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
