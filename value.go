// FILE: lixenwraith/layered/value.go
package layered

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Origin identifies the source that produced a value, e.g. a file path,
// "environment" or "override". It is diagnostic only and never affects equality.
type Origin string

// Well-known origins of the built-in sources.
const (
	OriginEnvironment Origin = "environment"
	OriginOverride    Origin = "override"
	OriginDefault     Origin = "default"
	OriginArgs        Origin = "command line"
	OriginMemory      Origin = "memory"
)

func (o Origin) String() string { return string(o) }

func (o Origin) display() string {
	if o == "" {
		return "unknown origin"
	}
	return string(o)
}

func (o Origin) suffix() string {
	if o == "" {
		return ""
	}
	return " (from " + string(o) + ")"
}

// Kind enumerates the variants of Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindI128
	KindU128
	KindFloat
	KindString
	KindArray
	KindTable
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "boolean",
	KindInt:    "integer",
	KindI128:   "i128",
	KindU128:   "u128",
	KindFloat:  "float",
	KindString: "string",
	KindArray:  "array",
	KindTable:  "table",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsInteger reports whether k is one of the integer kinds.
func (k Kind) IsInteger() bool {
	return k == KindInt || k == KindI128 || k == KindU128
}

// IsScalar reports whether k is a non-nil leaf kind.
func (k Kind) IsScalar() bool {
	return k != KindNil && k != KindArray && k != KindTable
}

var (
	minI128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxI128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	maxU128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	minInt64 = big.NewInt(math.MinInt64)
	maxInt64 = big.NewInt(math.MaxInt64)
)

// Value is a node of the configuration tree. The zero Value is Nil.
// Values are treated as immutable once published; Set copies along the path it writes.
type Value struct {
	kind   Kind
	origin Origin
	b      bool
	i      int64
	f      float64
	s      string
	n      *big.Int
	arr    []Value
	tbl    *Table
}

// Nil returns the nil value.
func Nil() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a 64-bit integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a 64-bit float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value holding items.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// TableValue wraps t as a value. A nil t yields an empty unordered table.
func TableValue(t *Table) Value {
	if t == nil {
		t = NewTable()
	}
	return Value{kind: KindTable, tbl: t}
}

// EmptyTable returns a value holding a new empty table.
func EmptyTable() Value { return TableValue(NewTable()) }

// BigInt returns an integer value for n. Numbers within int64 range become
// KindInt, others KindI128 or KindU128. Numbers outside the 128-bit ranges fail.
func BigInt(n *big.Int) (Value, error) {
	if n == nil {
		return Value{}, fmt.Errorf("%w: nil big integer", ErrTypeMismatch)
	}
	switch {
	case n.Cmp(minInt64) >= 0 && n.Cmp(maxInt64) <= 0:
		return Int(n.Int64()), nil
	case n.Cmp(minI128) >= 0 && n.Cmp(maxI128) <= 0:
		return Value{kind: KindI128, n: new(big.Int).Set(n)}, nil
	case n.Sign() > 0 && n.Cmp(maxU128) <= 0:
		return Value{kind: KindU128, n: new(big.Int).Set(n)}, nil
	}
	return Value{}, fmt.Errorf("%w: integer %s exceeds 128-bit range", ErrTypeMismatch, n.String())
}

// WithOrigin returns a copy of v whose top node carries origin.
func (v Value) WithOrigin(origin Origin) Value {
	v.origin = origin
	return v
}

// Kind returns the variant of v.
func (v Value) Kind() Kind { return v.kind }

// Origin returns the provenance of v.
func (v Value) Origin() Origin { return v.origin }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Items returns the elements of an array value.
func (v Value) Items() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Table returns the table of a table value.
func (v Value) Table() (*Table, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	return v.tbl, true
}

// Get looks up path without diagnostics. Missing keys, out-of-range indices and
// wrong container kinds all yield false; use Path.Eval for a precise error.
func (v Value) Get(path Path) (Value, bool) {
	cur := v
	for _, seg := range path {
		if seg.isIndex {
			if cur.kind != KindArray || seg.index >= len(cur.arr) {
				return Value{}, false
			}
			cur = cur.arr[seg.index]
			continue
		}
		if cur.kind != KindTable {
			return Value{}, false
		}
		next, ok := cur.tbl.Get(seg.key)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Set stores nv at path, creating missing intermediate tables and arrays and
// replacing any non-container node found on the way. Arrays are padded with nil
// values up to the addressed index. Nodes off the written path are shared, not copied.
// An index above MaxIndex fails with a *PathSyntaxError and leaves v unchanged.
func (v *Value) Set(path Path, nv Value) error {
	if err := path.checkIndices(); err != nil {
		return err
	}
	*v = setAt(*v, path, nv, v.kind == KindTable && v.tbl.Ordered())
	return nil
}

func setAt(cur Value, path Path, nv Value, ordered bool) Value {
	if len(path) == 0 {
		return nv
	}
	seg := path[0]

	if seg.isIndex {
		var items []Value
		origin := nv.origin
		if cur.kind == KindArray {
			items = cur.arr
			origin = cur.origin
		}
		next := make([]Value, max(len(items), seg.index+1))
		copy(next, items)
		for i := len(items); i < len(next); i++ {
			next[i] = Value{origin: nv.origin}
		}
		next[seg.index] = setAt(next[seg.index], path[1:], nv, ordered)
		return Value{kind: KindArray, origin: origin, arr: next}
	}

	var t *Table
	origin := nv.origin
	if cur.kind == KindTable {
		t = cur.tbl.clone()
		origin = cur.origin
	} else {
		t = newTableMode(ordered)
	}
	child, _ := t.Get(seg.key)
	t.Set(seg.key, setAt(child, path[1:], nv, t.ordered))
	return Value{kind: KindTable, origin: origin, tbl: t}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		v.arr = items
	case KindTable:
		t := newTableMode(v.tbl.Ordered())
		for _, k := range v.tbl.keys {
			t.Set(k, v.tbl.entries[k].Clone())
		}
		v.tbl = t
	case KindI128, KindU128:
		v.n = new(big.Int).Set(v.n)
	}
	return v
}

// withOrdering returns v with every table switched to the given ordering mode.
func (v Value) withOrdering(ordered bool) Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.withOrdering(ordered)
		}
		v.arr = items
	case KindTable:
		t := newTableMode(ordered)
		for _, k := range v.tbl.keys {
			t.Set(k, v.tbl.entries[k].withOrdering(ordered))
		}
		v.tbl = t
	}
	return v
}

// stampOrigin sets origin on every node that has none.
func (v Value) stampOrigin(origin Origin) Value {
	if v.origin == "" {
		v.origin = origin
	}
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.stampOrigin(origin)
		}
		v.arr = items
	case KindTable:
		t := newTableMode(v.tbl.Ordered())
		for _, k := range v.tbl.keys {
			t.Set(k, v.tbl.entries[k].stampOrigin(origin))
		}
		v.tbl = t
	}
	return v
}

// Equal compares structure and leaf values, ignoring origins and key order.
// Integers of different widths compare by numeric value.
func Equal(a, b Value) bool {
	if a.kind.IsInteger() && b.kind.IsInteger() {
		return a.bigInt().Cmp(b.bigInt()) == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindTable:
		if a.tbl.Len() != b.tbl.Len() {
			return false
		}
		for k, av := range a.tbl.entries {
			bv, ok := b.tbl.entries[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) bigInt() *big.Int {
	if v.kind == KindInt {
		return big.NewInt(v.i)
	}
	return v.n
}

// AsBool returns v as a boolean. Strings "true" and "false" are accepted in any
// case; numbers never coerce to booleans.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindString:
		switch {
		case strings.EqualFold(v.s, "true"):
			return true, nil
		case strings.EqualFold(v.s, "false"):
			return false, nil
		}
		return false, v.coercionError(fmt.Sprintf("string %q is not a boolean", v.s))
	}
	return false, v.mismatch("boolean")
}

// AsInt returns v as an int64. Numeric strings are parsed; floats are accepted
// only when integral and in range.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindI128, KindU128:
		return 0, v.coercionError(fmt.Sprintf("%s overflows int64", v.n.String()))
	case KindFloat:
		return floatToInt(v)
	case KindString:
		parsed := ParseScalar(strings.TrimSpace(v.s))
		switch parsed.kind {
		case KindInt:
			return parsed.i, nil
		case KindFloat:
			parsed.origin = v.origin
			return floatToInt(parsed)
		case KindI128, KindU128:
			return 0, v.coercionError(fmt.Sprintf("string %q overflows int64", v.s))
		}
		return 0, v.coercionError(fmt.Sprintf("string %q is not an integer", v.s))
	}
	return 0, v.mismatch("integer")
}

func floatToInt(v Value) (int64, error) {
	if v.f != math.Trunc(v.f) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
		return 0, v.coercionError(fmt.Sprintf("float %v is not representable as an integer", v.f))
	}
	return int64(v.f), nil
}

// AsBigInt returns any integer kind, or a numeric string, as a big integer.
func (v Value) AsBigInt() (*big.Int, error) {
	switch v.kind {
	case KindInt:
		return big.NewInt(v.i), nil
	case KindI128, KindU128:
		return new(big.Int).Set(v.n), nil
	case KindString:
		if n, ok := new(big.Int).SetString(strings.TrimSpace(v.s), 10); ok {
			return n, nil
		}
		return nil, v.coercionError(fmt.Sprintf("string %q is not an integer", v.s))
	case KindFloat:
		i, err := floatToInt(v)
		if err != nil {
			return nil, err
		}
		return big.NewInt(i), nil
	}
	return nil, v.mismatch("integer")
}

// AsFloat returns v as a float64, widening integers and parsing numeric strings.
// Strings such as "nan", "inf" or hex floats are not numbers here, matching ParseScalar.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindI128, KindU128:
		f, _ := new(big.Float).SetInt(v.n).Float64()
		return f, nil
	case KindString:
		s := strings.TrimSpace(v.s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !looksNumeric(s) {
			return 0, v.coercionError(fmt.Sprintf("string %q is not a number", v.s))
		}
		return f, nil
	}
	return 0, v.mismatch("float")
}

// AsString returns v as a string; scalars are formatted, containers and nil fail.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString:
		return v.s, nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindI128, KindU128:
		return v.n.String(), nil
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64), nil
	}
	return "", v.mismatch("string")
}

func (v Value) mismatch(expected string) error {
	return &TypeMismatchError{Expected: expected, Found: v.kind, Origin: v.origin}
}

func (v Value) coercionError(reason string) error {
	return &DeserializationError{Reason: reason, Origin: v.origin}
}

// ParseScalar detects booleans, integers and floats in s, returning a string
// value when none applies.
func ParseScalar(s string) Value {
	if strings.EqualFold(s, "true") {
		return Bool(true)
	}
	if strings.EqualFold(s, "false") {
		return Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if looksNumeric(s) {
		if n, ok := new(big.Int).SetString(s, 10); ok {
			if bv, err := BigInt(n); err == nil {
				return bv
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
	}
	return String(s)
}

// looksNumeric rejects words that strconv.ParseFloat accepts, such as "inf" and "nan".
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && !strings.ContainsRune("+-.eE_", r) {
			return false
		}
	}
	return strings.ContainsAny(s, "0123456789")
}

// Interface converts v into plain Go values: nil, bool, int64, *big.Int, float64,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindI128, KindU128:
		return new(big.Int).Set(v.n)
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindTable:
		out := make(map[string]any, v.tbl.Len())
		for k, item := range v.tbl.entries {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// String renders v for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindString:
		return v.s
	case KindArray, KindTable:
		if data, err := json.Marshal(jsonSafe(v)); err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v.Interface())
}

func jsonSafe(v Value) any {
	switch v.kind {
	case KindI128, KindU128:
		return json.Number(v.n.String())
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = jsonSafe(item)
		}
		return out
	case KindTable:
		out := make(map[string]any, v.tbl.Len())
		for k, item := range v.tbl.entries {
			out[k] = jsonSafe(item)
		}
		return out
	}
	return v.Interface()
}

// FromNative converts plain Go data (as produced by decoders or written in code)
// into a Value, stamping origin on every node.
func FromNative(x any, origin Origin) (Value, error) {
	return fromNative(x, origin)
}

func fromNative(x any, origin Origin) (Value, error) {
	var v Value
	switch t := x.(type) {
	case nil:
		v = Nil()
	case Value:
		return t.stampOrigin(origin), nil
	case *Table:
		return TableValue(t).stampOrigin(origin), nil
	case bool:
		v = Bool(t)
	case string:
		v = String(t)
	case []byte:
		v = String(string(t))
	case float64:
		v = Float(t)
	case float32:
		v = Float(float64(t))
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		i, err := cast.ToInt64E(t)
		if err != nil {
			return Value{}, err
		}
		v = Int(i)
	case uint:
		return fromUnsigned(uint64(t), origin)
	case uint64:
		return fromUnsigned(t, origin)
	case *big.Int:
		bv, err := BigInt(t)
		if err != nil {
			return Value{}, err
		}
		v = bv
	case json.Number:
		v = parseNumber(string(t))
	case time.Duration:
		v = String(t.String())
	case time.Time:
		v = String(t.Format(time.RFC3339Nano))
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			iv, err := fromNative(item, origin)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = iv
		}
		v = Array(items...)
	case map[string]any:
		tbl := NewTable()
		for _, k := range sortedKeys(t) {
			iv, err := fromNative(t[k], origin)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			tbl.Set(k, iv)
		}
		v = TableValue(tbl)
	case map[any]any:
		m, err := cast.ToStringMapE(t)
		if err != nil {
			return Value{}, err
		}
		return fromNative(m, origin)
	case fmt.Stringer:
		if isNilRef(t) {
			v = Nil()
			break
		}
		v = String(t.String())
	default:
		return fromReflect(x, origin)
	}
	v.origin = origin
	return v, nil
}

// isNilRef reports nil pointers, slices and maps hidden behind an interface,
// such as an unset *url.URL or net.IP.
func isNilRef(x any) bool {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func fromUnsigned(u uint64, origin Origin) (Value, error) {
	if u <= math.MaxInt64 {
		return Int(int64(u)).WithOrigin(origin), nil
	}
	bv, err := BigInt(new(big.Int).SetUint64(u))
	if err != nil {
		return Value{}, err
	}
	return bv.WithOrigin(origin), nil
}

// fromReflect handles typed slices and string-keyed maps such as []string or
// map[string]int that the type switch cannot enumerate.
func fromReflect(x any, origin Origin) (Value, error) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			iv, err := fromNative(rv.Index(i).Interface(), origin)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = iv
		}
		return Array(items...).WithOrigin(origin), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return fromNative(m, origin)
	case reflect.Pointer:
		if rv.IsNil() {
			return Nil().WithOrigin(origin), nil
		}
		return fromNative(rv.Elem().Interface(), origin)
	case reflect.String:
		return String(rv.String()).WithOrigin(origin), nil
	case reflect.Bool:
		return Bool(rv.Bool()).WithOrigin(origin), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()).WithOrigin(origin), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUnsigned(rv.Uint(), origin)
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()).WithOrigin(origin), nil
	}
	return Value{}, fmt.Errorf("%w: cannot convert %T to a configuration value", ErrTypeMismatch, x)
}

// parseNumber keeps integers exact, falling back to 128-bit and then float.
func parseNumber(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		if bv, err := BigInt(n); err == nil {
			return bv
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}
