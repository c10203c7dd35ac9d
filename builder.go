// File: lixenwraith/layered/builder.go
package layered

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

// ValidatorFunc checks a built Config. It runs after the first successful
// build, in the order validators were added.
type ValidatorFunc func(c *Config) error

// Builder provides a fluent interface for assembling a Config.
type Builder struct {
	cfg        *Config
	defaults   []any
	err        error
	validators []ValidatorFunc
}

// NewBuilder creates a new configuration builder.
func NewBuilder() *Builder {
	return &Builder{cfg: New()}
}

// AddSource registers src above every source added before it.
func (b *Builder) AddSource(src Source) *Builder {
	if src != nil {
		b.cfg.AddSource(src)
	}
	return b
}

// AddAsyncSource registers an asynchronous source.
func (b *Builder) AddAsyncSource(src AsyncSource) *Builder {
	if src != nil {
		b.cfg.AddAsyncSource(src)
	}
	return b
}

// WithFile adds a required file source.
func (b *Builder) WithFile(path string) *Builder {
	return b.AddSource(File(path))
}

// WithOptionalFile adds a file source that may be absent.
func (b *Builder) WithOptionalFile(path string) *Builder {
	return b.AddSource(File(path).Optional())
}

// WithEnvPrefix adds an environment source for prefix using "__" to separate
// nested keys, so MYAPP__SERVER__PORT maps to server.port.
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	return b.AddSource(Env(prefix).Separator("__"))
}

// WithArgs adds a command-line source.
func (b *Builder) WithArgs(args []string) *Builder {
	return b.AddSource(Args(args))
}

// WithDefaults layers the fields of a struct below every source.
func (b *Builder) WithDefaults(defaults any) *Builder {
	if defaults != nil {
		b.defaults = append(b.defaults, defaults)
	}
	return b
}

// SetDefault stores a single value below every source.
func (b *Builder) SetDefault(path string, value any) *Builder {
	if err := b.cfg.SetDefault(path, value); err != nil && b.err == nil {
		b.err = fmt.Errorf("default %q: %w", path, err)
	}
	return b
}

// SetOverride stores a value above every source.
func (b *Builder) SetOverride(path string, value any) *Builder {
	if err := b.cfg.SetOverride(path, value); err != nil && b.err == nil {
		b.err = fmt.Errorf("override %q: %w", path, err)
	}
	return b
}

// WithOrderedKeys makes tables in the snapshot iterate keys in the order
// they were first contributed.
func (b *Builder) WithOrderedKeys() *Builder {
	b.cfg.ordered = true
	return b
}

// WithLogger routes build diagnostics to logger.
func (b *Builder) WithLogger(logger *log.Logger) *Builder {
	if logger != nil {
		b.cfg.logger = logger
	}
	return b
}

// WithStructValidation checks `validate` struct tags after every Scan.
func (b *Builder) WithStructValidation() *Builder {
	b.cfg.validate = validator.New(validator.WithRequiredStructEnabled())
	return b
}

// WithValidator adds a validation function that runs at the end of the build.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// Build collects every source and returns the Config.
func (b *Builder) Build() (*Config, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with cancellation for asynchronous sources.
func (b *Builder) BuildContext(ctx context.Context) (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}

	for _, d := range b.defaults {
		v, err := Struct(d).Collect()
		if err != nil {
			return nil, fmt.Errorf("failed to register defaults: %w", err)
		}
		b.cfg.mergeDefaults(v)
	}

	if err := b.cfg.RefreshContext(ctx); err != nil {
		return nil, err
	}

	for _, validate := range b.validators {
		if err := validate(b.cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return b.cfg, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("config build failed: %v", err))
	}
	return cfg
}

// BuildAndScan builds and scans the whole configuration into target.
func (b *Builder) BuildAndScan(target any) error {
	cfg, err := b.Build()
	if err != nil {
		return err
	}
	if err := cfg.Scan("", target); err != nil {
		return fmt.Errorf("failed to scan final config into target: %w", err)
	}
	return nil
}
