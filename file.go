// FILE: lixenwraith/layered/file.go
package layered

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// FileSource reads and decodes one configuration file.
type FileSource struct {
	path     string
	format   Format
	required bool
	maxSize  int64
	origin   Origin

	expand bool
	vars   map[string]string // nil reads the process environment
}

// File creates a required source for path. The format is chosen by hint,
// then by extension, then by content. When path itself does not exist, each
// registered extension is tried by appending it ("config" -> "config.toml").
func File(path string) *FileSource {
	return &FileSource{path: path, required: true, origin: Origin(path)}
}

// Format sets the format hint, bypassing detection.
func (s *FileSource) Format(f Format) *FileSource {
	s.format = f
	return s
}

// Optional makes a missing file contribute an empty table instead of failing.
func (s *FileSource) Optional() *FileSource {
	s.required = false
	return s
}

// MaxSize rejects files larger than n bytes. Zero disables the check.
func (s *FileSource) MaxSize(n int64) *FileSource {
	s.maxSize = n
	return s
}

// ExpandEnv substitutes ${NAME} and ${NAME:-default} references in the raw
// text before it is decoded. Values come from vars, or from the process
// environment when vars is nil.
func (s *FileSource) ExpandEnv(vars map[string]string) *FileSource {
	s.expand, s.vars = true, vars
	return s
}

// Named overrides the origin, which defaults to the file path.
func (s *FileSource) Named(origin Origin) *FileSource {
	s.origin = origin
	return s
}

func (s *FileSource) Origin() Origin { return s.origin }
func (s *FileSource) Required() bool { return s.required }

// Path returns the configured path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Collect() (Value, error) {
	resolved, info, err := s.resolve()
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) && !s.required {
			return EmptyTable().WithOrigin(s.origin), nil
		}
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: err}
	}

	if s.maxSize > 0 && info.Size() > s.maxSize {
		return Value{}, &SourceError{Index: -1, Origin: s.origin,
			Err: fmt.Errorf("config file '%s' exceeds maximum size %d bytes", resolved, s.maxSize)}
	}

	data, err := s.read(resolved)
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: err}
	}
	if s.expand {
		data = []byte(expandVars(string(data), orEnviron(s.vars)))
	}

	format := s.format
	if format.Decode == nil {
		var ok bool
		if format, ok = FormatForPath(resolved); !ok {
			if format, ok = detectFormat(data); !ok {
				return Value{}, &SourceError{Index: -1, Origin: s.origin,
					Err: fmt.Errorf("%w: unable to determine config format for file '%s'", ErrUnsupportedFormat, resolved)}
			}
		}
	}

	v, err := decodeTable(format, data, s.origin)
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: fmt.Errorf("file '%s': %w", resolved, err)}
	}
	return v, nil
}

// CollectAsync reads the file on its own goroutine.
func (s *FileSource) CollectAsync(ctx context.Context) *Future {
	return Go(ctx, func(ctx context.Context) (Value, error) {
		if err := ctx.Err(); err != nil {
			return Value{}, err
		}
		return s.Collect()
	})
}

func (s *FileSource) resolve() (string, os.FileInfo, error) {
	info, err := os.Stat(s.path)
	if err == nil {
		if info.IsDir() {
			return "", nil, fmt.Errorf("config path '%s' is a directory", s.path)
		}
		return s.path, info, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("failed to stat config file '%s': %w", s.path, err)
	}

	exts := s.format.Extensions
	if s.format.Decode == nil {
		exts = registeredExtensions()
	}
	for _, ext := range exts {
		candidate := s.path + "." + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, info, nil
		}
	}
	return "", nil, fmt.Errorf("%w: configuration file '%s' not found", ErrSourceUnavailable, s.path)
}

func (s *FileSource) read(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if s.maxSize > 0 {
		reader = io.LimitReader(file, s.maxSize)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return stripBOM(data), nil
}
