// FILE: lixenwraith/layered/deserialize.go
package layered

import (
	"fmt"
	"math"
	"math/big"
	"slices"
	"strings"
	"time"
)

// Unmarshaler is implemented by types that pull their own shape out of a
// configuration tree. Implementations call the Decoder's shape methods
// (Record, Seq, Map, Enum or a scalar accessor) on d.
type Unmarshaler interface {
	UnmarshalConfig(d *Decoder) error
}

// Option adjusts deserialization.
type Option func(*options)

type options struct {
	strict   bool
	enumCase CaseFunc
}

// Strict rejects table keys that no record field claims.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// WithEnumCase converts enum input with fn before matching it against
// variant names, e.g. CaseCamel to accept "in_progress" for "InProgress".
func WithEnumCase(fn CaseFunc) Option {
	return func(o *options) { o.enumCase = fn }
}

// Decoder is a cursor over one node of a Value tree. Errors it produces carry
// the node's path and origin. Conversion is fail-fast: the first error along
// a chain of nested calls is returned unchanged to the caller.
type Decoder struct {
	value Value
	path  Path
	opts  *options
}

// NewDecoder returns a decoder positioned at the root of v.
func NewDecoder(v Value, opts ...Option) *Decoder {
	return newDecoderAt(v, nil, opts...)
}

func newDecoderAt(v Value, path Path, opts ...Option) *Decoder {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Decoder{value: v, path: path, opts: o}
}

func (d *Decoder) child(v Value, p Path) *Decoder {
	return &Decoder{value: v, path: p, opts: d.opts}
}

// Path returns the location of the node within the decoded tree.
func (d *Decoder) Path() Path { return slices.Clone(d.path) }

// Value returns the node itself.
func (d *Decoder) Value() Value { return d.value }

// Origin returns the node's origin.
func (d *Decoder) Origin() Origin { return d.value.origin }

// IsNil reports whether the node is nil.
func (d *Decoder) IsNil() bool { return d.value.IsNil() }

// Errorf builds a DeserializationError located at the node.
func (d *Decoder) Errorf(format string, args ...any) error {
	return &DeserializationError{Path: slices.Clone(d.path), Reason: fmt.Sprintf(format, args...), Origin: d.value.origin}
}

// Scalars

func (d *Decoder) Bool() (bool, error) {
	b, err := d.value.AsBool()
	return b, withPath(err, d.path)
}

func (d *Decoder) String() (string, error) {
	s, err := d.value.AsString()
	return s, withPath(err, d.path)
}

func (d *Decoder) Int() (int64, error) {
	i, err := d.value.AsInt()
	return i, withPath(err, d.path)
}

func (d *Decoder) Float() (float64, error) {
	f, err := d.value.AsFloat()
	return f, withPath(err, d.path)
}

// BigInt accepts every integer width, including the 128-bit kinds.
func (d *Decoder) BigInt() (*big.Int, error) {
	n, err := d.value.AsBigInt()
	return n, withPath(err, d.path)
}

// Uint accepts non-negative integers up to the uint64 range.
func (d *Decoder) Uint() (uint64, error) {
	n, err := d.BigInt()
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, d.Errorf("%s out of range for unsigned 64-bit integer", n.String())
	}
	return n.Uint64(), nil
}

// Duration parses strings such as "1m30s"; integers count nanoseconds.
func (d *Decoder) Duration() (time.Duration, error) {
	switch d.value.kind {
	case KindString:
		dur, err := time.ParseDuration(strings.TrimSpace(d.value.s))
		if err != nil {
			return 0, d.Errorf("string %q is not a duration", d.value.s)
		}
		return dur, nil
	case KindInt:
		return time.Duration(d.value.i), nil
	}
	return 0, withPath(d.value.mismatch("duration"), d.path)
}

func (d *Decoder) intRange(lo, hi int64) (int64, error) {
	i, err := d.Int()
	if err != nil {
		return 0, err
	}
	if i < lo || i > hi {
		return 0, d.Errorf("%d out of range [%d, %d]", i, lo, hi)
	}
	return i, nil
}

func (d *Decoder) uintRange(hi uint64) (uint64, error) {
	u, err := d.Uint()
	if err != nil {
		return 0, err
	}
	if u > hi {
		return 0, d.Errorf("%d out of range [0, %d]", u, hi)
	}
	return u, nil
}

// Into decodes the node into target, which must be a pointer to a supported
// scalar, a *Value, one of a few common slice and map types, or implement
// Unmarshaler. Other shapes use DecodeSlice, DecodeMap or an Unmarshaler.
func (d *Decoder) Into(target any) error {
	var err error
	switch t := target.(type) {
	case Unmarshaler:
		return t.UnmarshalConfig(d)
	case *Value:
		*t = d.value
	case *bool:
		*t, err = d.Bool()
	case *string:
		*t, err = d.String()
	case *int:
		var i int64
		i, err = d.intRange(math.MinInt, math.MaxInt)
		*t = int(i)
	case *int8:
		var i int64
		i, err = d.intRange(math.MinInt8, math.MaxInt8)
		*t = int8(i)
	case *int16:
		var i int64
		i, err = d.intRange(math.MinInt16, math.MaxInt16)
		*t = int16(i)
	case *int32:
		var i int64
		i, err = d.intRange(math.MinInt32, math.MaxInt32)
		*t = int32(i)
	case *int64:
		*t, err = d.Int()
	case *uint:
		var u uint64
		u, err = d.uintRange(math.MaxUint)
		*t = uint(u)
	case *uint8:
		var u uint64
		u, err = d.uintRange(math.MaxUint8)
		*t = uint8(u)
	case *uint16:
		var u uint64
		u, err = d.uintRange(math.MaxUint16)
		*t = uint16(u)
	case *uint32:
		var u uint64
		u, err = d.uintRange(math.MaxUint32)
		*t = uint32(u)
	case *uint64:
		*t, err = d.Uint()
	case *float64:
		*t, err = d.Float()
	case *float32:
		var f float64
		f, err = d.Float()
		*t = float32(f)
	case *time.Duration:
		*t, err = d.Duration()
	case *big.Int:
		var n *big.Int
		if n, err = d.BigInt(); err == nil {
			t.Set(n)
		}
	case *[]string:
		*t, err = DecodeSlice[string](d)
	case *[]int:
		*t, err = DecodeSlice[int](d)
	case *[]int64:
		*t, err = DecodeSlice[int64](d)
	case *[]float64:
		*t, err = DecodeSlice[float64](d)
	case *[]bool:
		*t, err = DecodeSlice[bool](d)
	case *[]any:
		*t, err = DecodeSlice[any](d)
	case *map[string]string:
		*t, err = DecodeMap[string](d)
	case *map[string]any:
		*t, err = DecodeMap[any](d)
	case *any:
		*t = d.value.Interface()
	default:
		return d.Errorf("unsupported target type %T", target)
	}
	return err
}

// Containers

// Len returns the entry count of an array or table node, 0 for nil and 1 for
// a scalar.
func (d *Decoder) Len() int {
	switch d.value.kind {
	case KindArray:
		return len(d.value.arr)
	case KindNil:
		return 0
	case KindTable:
		return d.value.tbl.Len()
	}
	return 1
}

// Seq visits the elements of an array node in order. Nil is an empty sequence
// and a scalar is a one-element sequence.
func (d *Decoder) Seq(fn func(i int, elem *Decoder) error) error {
	switch d.value.kind {
	case KindNil:
		return nil
	case KindArray:
		for i, item := range d.value.arr {
			if err := fn(i, d.child(item, d.path.At(i))); err != nil {
				return err
			}
		}
		return nil
	case KindTable:
		return withPath(d.value.mismatch("array"), d.path)
	}
	return fn(0, d)
}

// SeqN is Seq for fixed-length targets; any other length fails.
func (d *Decoder) SeqN(n int, fn func(i int, elem *Decoder) error) error {
	if d.value.kind != KindArray {
		if d.value.kind == KindNil && n == 0 {
			return nil
		}
		if d.value.kind != KindNil && d.value.kind != KindTable {
			return d.Errorf("expected array of length %d, found %s", n, d.value.kind)
		}
		return withPath(d.value.mismatch("array"), d.path)
	}
	if got := len(d.value.arr); got != n {
		return d.Errorf("expected array of length %d, found length %d", n, got)
	}
	return d.Seq(fn)
}

// Map visits every entry of a table node in key order; keys are passed
// through unchanged. Nil is an empty mapping.
func (d *Decoder) Map(fn func(key string, elem *Decoder) error) error {
	switch d.value.kind {
	case KindNil:
		return nil
	case KindTable:
		for _, k := range d.value.tbl.Keys() {
			v, _ := d.value.tbl.Get(k)
			if err := fn(k, d.child(v, d.path.Child(k))); err != nil {
				return err
			}
		}
		return nil
	}
	return withPath(d.value.mismatch("table"), d.path)
}

// Field looks a key up in a table node, exactly first and then ignoring case.
func (d *Decoder) Field(name string) (*Decoder, bool) {
	if d.value.kind != KindTable {
		return nil, false
	}
	key, ok := d.matchKey(name)
	if !ok {
		return nil, false
	}
	v, _ := d.value.tbl.Get(key)
	return d.child(v, d.path.Child(key)), true
}

func (d *Decoder) matchKey(name string) (string, bool) {
	if _, ok := d.value.tbl.Get(name); ok {
		return name, true
	}
	for _, k := range d.value.tbl.Keys() {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Records

// Field describes one named member of a record.
type Field struct {
	Name     string
	Required bool
	// Decode receives the member when present and non-nil.
	Decode func(d *Decoder) error
	// Default runs when an optional member is absent or nil. It may be nil,
	// leaving the target untouched.
	Default func()
}

// Required declares a mandatory field decoded into target with Into.
func Required(name string, target any) Field {
	return Field{Name: name, Required: true, Decode: func(d *Decoder) error { return d.Into(target) }}
}

// Optional declares a field that keeps target's current value when absent.
func Optional(name string, target any) Field {
	return Field{Name: name, Decode: func(d *Decoder) error { return d.Into(target) }}
}

// OptionalDefault declares a field that is set to def when absent.
func OptionalDefault[T any](name string, target *T, def T) Field {
	return Field{
		Name:    name,
		Decode:  func(d *Decoder) error { return d.Into(target) },
		Default: func() { *target = def },
	}
}

// Record decodes a table node into named fields, in declaration order.
// Keys match field names ignoring case. A nil node is an empty table.
// In strict mode a key claimed by no field fails with UnknownFieldError
// before any field is decoded.
func (d *Decoder) Record(fields ...Field) error {
	switch d.value.kind {
	case KindTable:
	case KindNil:
		return d.child(TableValue(NewTable()).WithOrigin(d.value.origin), d.path).Record(fields...)
	default:
		return withPath(d.value.mismatch("table"), d.path)
	}

	if d.opts.strict {
		for _, k := range d.value.tbl.Keys() {
			claimed := slices.ContainsFunc(fields, func(f Field) bool { return strings.EqualFold(f.Name, k) })
			if !claimed {
				return &UnknownFieldError{Path: slices.Clone(d.path), Field: k, Origin: d.value.origin}
			}
		}
	}

	for _, f := range fields {
		var member *Decoder
		if key, ok := d.matchKey(f.Name); ok {
			if v, _ := d.value.tbl.Get(key); !v.IsNil() {
				member = d.child(v, d.path.Child(key))
			}
		}
		if member == nil {
			if f.Required {
				return &MissingFieldError{Path: slices.Clone(d.path), Field: f.Name, Origin: d.value.origin}
			}
			if f.Default != nil {
				f.Default()
			}
			continue
		}
		if f.Decode == nil {
			continue
		}
		if err := f.Decode(member); err != nil {
			return err
		}
	}
	return nil
}

// Enumerations

// Variant describes one alternative of an enumeration. Unit variants set
// Select; data-carrying variants set Decode, which receives the payload.
type Variant struct {
	Name   string
	Select func()
	Decode func(payload *Decoder) error
}

// Unit declares a variant without data that stores val in out when chosen.
func Unit[T any](name string, out *T, val T) Variant {
	return Variant{Name: name, Select: func() { *out = val }}
}

// Payload declares a data-carrying variant.
func Payload(name string, fn func(payload *Decoder) error) Variant {
	return Variant{Name: name, Decode: fn}
}

// Enum selects a variant from a string naming it or from a single-key table
// whose key names it and whose value is the payload. Names match ignoring
// case, after the WithEnumCase conversion when one is configured.
func (d *Decoder) Enum(variants ...Variant) error {
	switch d.value.kind {
	case KindString:
		v, ok := d.matchVariant(d.value.s, variants)
		if !ok {
			return d.unknownVariant(d.value.s, variants)
		}
		if v.Select != nil {
			v.Select()
			return nil
		}
		if v.Decode != nil {
			return v.Decode(d.child(Nil().WithOrigin(d.value.origin), d.path.Child(v.Name)))
		}
		return nil
	case KindTable:
		if d.value.tbl.Len() != 1 {
			return d.Errorf("expected a table with exactly one key to select a variant, found %d keys", d.value.tbl.Len())
		}
		key := d.value.tbl.Keys()[0]
		payload, _ := d.value.tbl.Get(key)
		v, ok := d.matchVariant(key, variants)
		if !ok {
			return d.unknownVariant(key, variants)
		}
		if v.Decode != nil {
			return v.Decode(d.child(payload, d.path.Child(key)))
		}
		if !payload.IsNil() && !(payload.kind == KindTable && payload.tbl.Len() == 0) {
			return d.Errorf("variant %s carries no data, found %s", v.Name, payload.kind)
		}
		if v.Select != nil {
			v.Select()
		}
		return nil
	}
	return d.Errorf("expected a string or single-key table for a variant of %s, found %s",
		variantNames(variants), d.value.kind)
}

func (d *Decoder) matchVariant(input string, variants []Variant) (Variant, bool) {
	candidates := []string{input}
	if d.opts.enumCase != nil {
		candidates = append(candidates, d.opts.enumCase(input))
	}
	for _, c := range candidates {
		for _, v := range variants {
			if strings.EqualFold(c, v.Name) {
				return v, true
			}
		}
	}
	return Variant{}, false
}

func (d *Decoder) unknownVariant(input string, variants []Variant) error {
	return d.Errorf("unknown variant %q, expected one of: %s", input, variantNames(variants))
}

func variantNames(variants []Variant) string {
	names := make([]string, len(variants))
	for i, v := range variants {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}

// Generic entry points

// Deserialize decodes v into target.
func Deserialize(v Value, target any, opts ...Option) error {
	return NewDecoder(v, opts...).Into(target)
}

// Decode decodes v into a new T. *T must be supported by Decoder.Into.
func Decode[T any](v Value, opts ...Option) (T, error) {
	var out T
	err := Deserialize(v, &out, opts...)
	return out, err
}

// TryDeserialize decodes the whole snapshot of c into a new T.
func TryDeserialize[T any](c *Config, opts ...Option) (T, error) {
	var out T
	snap, err := c.Snapshot()
	if err != nil {
		return out, err
	}
	err = Deserialize(snap, &out, opts...)
	return out, err
}

// TryGet decodes the subtree of c at path into a new T. Errors report paths
// relative to the snapshot root.
func TryGet[T any](c *Config, path string, opts ...Option) (T, error) {
	var out T
	p, err := ParsePath(path)
	if err != nil {
		return out, err
	}
	v, err := c.GetPath(p)
	if err != nil {
		return out, err
	}
	err = newDecoderAt(v, p, opts...).Into(&out)
	return out, err
}

// Get is TryGet returning def on any error.
func Get[T any](c *Config, path string, def T, opts ...Option) T {
	out, err := TryGet[T](c, path, opts...)
	if err != nil {
		return def
	}
	return out
}

// DecodeSlice decodes every element of the node into T.
func DecodeSlice[T any](d *Decoder) ([]T, error) {
	out := make([]T, 0, d.Len())
	err := d.Seq(func(_ int, elem *Decoder) error {
		var item T
		if err := elem.Into(&item); err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeMap decodes every entry of a table node into T.
func DecodeMap[T any](d *Decoder) (map[string]T, error) {
	out := make(map[string]T, d.Len())
	err := d.Map(func(key string, elem *Decoder) error {
		var item T
		if err := elem.Into(&item); err != nil {
			return err
		}
		out[key] = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
