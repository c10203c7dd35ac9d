// FILE: lixenwraith/layered/source.go
package layered

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Source contributes a configuration tree. Collect blocks the calling
// goroutine for any I/O it performs.
type Source interface {
	// Origin labels every value the source produces.
	Origin() Origin
	// Required reports whether a source that cannot produce data fails the
	// build (true) or contributes an empty table (false).
	Required() bool
	Collect() (Value, error)
}

// AsyncSource is a source whose collection runs as a Future. A Config joins
// pending futures one at a time in registration order.
type AsyncSource interface {
	Origin() Origin
	Required() bool
	CollectAsync(ctx context.Context) *Future
}

// Future is the pending result of an asynchronous collection.
type Future struct {
	done  chan struct{}
	value Value
	err   error
}

// Go runs fn on a new goroutine and returns its Future.
func Go(ctx context.Context, fn func(ctx context.Context) (Value, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Ready returns a Future that has already completed.
func Ready(v Value, err error) *Future {
	f := &Future{done: make(chan struct{}), value: v, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx ends. A completed result
// is always preferred over a concurrently cancelled context.
func (f *Future) Await(ctx context.Context) (Value, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return Value{}, ctx.Err()
	}
}

// Async adapts a blocking source so that it can be registered with
// AddAsyncSource. Collect runs on its own goroutine.
func Async(src Source) AsyncSource {
	return asyncAdapter{src}
}

type asyncAdapter struct{ Source }

func (a asyncAdapter) CollectAsync(ctx context.Context) *Future {
	return Go(ctx, func(context.Context) (Value, error) {
		return a.Collect()
	})
}

// MemorySource serves a tree held in memory. It never fails unless the
// supplied data cannot be represented as a Value.
type MemorySource struct {
	origin Origin
	value  Value
	err    error
}

// Memory wraps a native Go map. Nested maps, slices and scalars are converted
// with FromNative.
func Memory(data map[string]any) *MemorySource {
	s := &MemorySource{origin: OriginMemory}
	v, err := FromNative(data, "")
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrTypeMismatch, err)
		return s
	}
	s.value = v
	return s
}

// MemoryValue wraps a pre-built Value.
func MemoryValue(v Value) *MemorySource {
	return &MemorySource{origin: OriginMemory, value: v}
}

// Named sets the origin reported for the source's values.
func (s *MemorySource) Named(origin Origin) *MemorySource {
	s.origin = origin
	return s
}

func (s *MemorySource) Origin() Origin { return s.origin }

// Required always reports true; a memory source has nothing to miss.
func (s *MemorySource) Required() bool { return true }

func (s *MemorySource) Collect() (Value, error) {
	if s.err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: s.err}
	}
	if s.value.IsNil() {
		return EmptyTable().WithOrigin(s.origin), nil
	}
	return s.value.stampOrigin(s.origin), nil
}

func (s *MemorySource) CollectAsync(context.Context) *Future {
	return Ready(s.Collect())
}

// TextSource decodes configuration text held in memory.
type TextSource struct {
	text   string
	format Format
	origin Origin

	expand bool
	vars   map[string]string
}

// StringSource decodes text with format. A zero Format selects the decoder
// by inspecting the content.
func StringSource(text string, format Format) *TextSource {
	return &TextSource{text: text, format: format, origin: "string"}
}

// Named sets the origin reported for the source's values.
func (s *TextSource) Named(origin Origin) *TextSource {
	s.origin = origin
	return s
}

// ExpandEnv substitutes ${NAME} and ${NAME:-default} references before
// decoding, reading vars or, when vars is nil, the process environment.
func (s *TextSource) ExpandEnv(vars map[string]string) *TextSource {
	s.expand, s.vars = true, vars
	return s
}

func (s *TextSource) Origin() Origin { return s.origin }
func (s *TextSource) Required() bool { return true }

func (s *TextSource) Collect() (Value, error) {
	text := s.text
	if s.expand {
		text = expandVars(text, orEnviron(s.vars))
	}
	data := stripBOM([]byte(text))
	format := s.format
	if format.Decode == nil {
		detected, ok := detectFormat(data)
		if !ok {
			return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: fmt.Errorf("%w: cannot detect format of string source", ErrUnsupportedFormat)}
		}
		format = detected
	}
	v, err := decodeTable(format, data, s.origin)
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: err}
	}
	return v, nil
}

func (s *TextSource) CollectAsync(context.Context) *Future {
	return Ready(s.Collect())
}

// StructSource contributes the fields of a Go struct, typically a value
// holding application defaults. Keys come from the toml tag, falling back to
// the field name.
type StructSource struct {
	value  any
	tag    string
	origin Origin
}

// Struct wraps a struct value or pointer.
func Struct(v any) *StructSource {
	return &StructSource{value: v, tag: "toml", origin: OriginDefault}
}

// Tag selects the struct tag that names keys.
func (s *StructSource) Tag(name string) *StructSource {
	s.tag = name
	return s
}

// Named sets the origin reported for the source's values.
func (s *StructSource) Named(origin Origin) *StructSource {
	s.origin = origin
	return s
}

func (s *StructSource) Origin() Origin { return s.origin }
func (s *StructSource) Required() bool { return true }

func (s *StructSource) Collect() (Value, error) {
	out := make(map[string]any)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: s.tag,
	})
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: fmt.Errorf("decoder creation failed: %w", err)}
	}
	if err := decoder.Decode(s.value); err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: fmt.Errorf("struct conversion failed: %w", err)}
	}
	v, err := FromNative(out, s.origin)
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: err}
	}
	return v, nil
}

func (s *StructSource) CollectAsync(context.Context) *Future {
	return Ready(s.Collect())
}
