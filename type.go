// File: lixenwraith/layered/type.go
package layered

import (
	"errors"
	"slices"
)

// String retrieves a string at path. Booleans and numbers are formatted;
// tables, arrays and nil fail with a TypeMismatchError.
func (c *Config) String(path string) (string, error) {
	v, p, err := c.lookup(path)
	if err != nil {
		return "", err
	}
	s, err := v.AsString()
	return s, withPath(err, p)
}

// Int64 retrieves an integer at path. Numeric strings are parsed and
// integral floats accepted; booleans never convert.
func (c *Config) Int64(path string) (int64, error) {
	v, p, err := c.lookup(path)
	if err != nil {
		return 0, err
	}
	i, err := v.AsInt()
	return i, withPath(err, p)
}

// Bool retrieves a boolean at path. The strings "true" and "false" are
// accepted in any case; numbers never convert.
func (c *Config) Bool(path string) (bool, error) {
	v, p, err := c.lookup(path)
	if err != nil {
		return false, err
	}
	b, err := v.AsBool()
	return b, withPath(err, p)
}

// Float64 retrieves a float at path, widening integers and parsing numeric strings.
func (c *Config) Float64(path string) (float64, error) {
	v, p, err := c.lookup(path)
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat()
	return f, withPath(err, p)
}

// Strings retrieves an array of strings at path. A single scalar is returned
// as a one-element slice, matching how list-valued environment variables
// without a separator arrive.
func (c *Config) Strings(path string) ([]string, error) {
	v, p, err := c.lookup(path)
	if err != nil {
		return nil, err
	}
	items, ok := v.Items()
	if !ok {
		if !v.kind.IsScalar() {
			return nil, withPath(v.mismatch("array"), p)
		}
		items = []Value{v}
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := item.AsString()
		if err != nil {
			return nil, withPath(err, p.At(i))
		}
		out[i] = s
	}
	return out, nil
}

func (c *Config) lookup(path string) (Value, Path, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Value{}, nil, err
	}
	v, err := c.GetPath(p)
	return v, p, err
}

// withPath fills in the path of a coercion error raised below the accessor.
func withPath(err error, p Path) error {
	if err == nil {
		return nil
	}
	var tm *TypeMismatchError
	if errors.As(err, &tm) && len(tm.Path) == 0 {
		annotated := *tm
		annotated.Path = slices.Clone(p)
		return &annotated
	}
	var de *DeserializationError
	if errors.As(err, &de) && len(de.Path) == 0 {
		annotated := *de
		annotated.Path = slices.Clone(p)
		return &annotated
	}
	return err
}
