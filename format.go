// FILE: lixenwraith/layered/format.go
package layered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Format couples a decoder and an optional encoder for one serialization
// format. Decode must return a table, or nil for empty input.
type Format struct {
	Name       string
	Extensions []string // without the leading dot
	Decode     func(data []byte) (Value, error)
	Encode     func(v Value) ([]byte, error)
}

// Built-in formats.
var (
	FormatTOML = Format{
		Name:       "toml",
		Extensions: []string{"toml", "tml"},
		Decode:     decodeTOML,
		Encode:     encodeTOML,
	}
	FormatYAML = Format{
		Name:       "yaml",
		Extensions: []string{"yaml", "yml"},
		Decode:     decodeYAML,
		Encode:     encodeYAML,
	}
	FormatJSON = Format{
		Name:       "json",
		Extensions: []string{"json"},
		Decode:     decodeJSON,
		Encode:     encodeJSON,
	}
	FormatINI = Format{
		Name:       "ini",
		Extensions: []string{"ini"},
		Decode:     decodeINI,
		Encode:     encodeINI,
	}
	FormatDotenv = Format{
		Name:       "dotenv",
		Extensions: []string{"env"},
		Decode:     decodeDotenv,
		Encode:     encodeDotenv,
	}
)

type formatRegistry struct {
	mu     sync.RWMutex
	byName map[string]Format
	byExt  map[string]string
	order  []string
}

var registry = newFormatRegistry(FormatTOML, FormatYAML, FormatJSON, FormatINI, FormatDotenv)

func newFormatRegistry(formats ...Format) *formatRegistry {
	r := &formatRegistry{byName: make(map[string]Format), byExt: make(map[string]string)}
	for _, f := range formats {
		r.add(f)
	}
	return r
}

func (r *formatRegistry) add(f Format) {
	name := strings.ToLower(f.Name)
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = f
	for _, ext := range f.Extensions {
		r.byExt[strings.ToLower(strings.TrimPrefix(ext, "."))] = name
	}
}

// RegisterFormat adds or replaces a format. Its extensions take over any
// extension previously claimed by another format.
func RegisterFormat(f Format) error {
	if f.Name == "" {
		return errors.New("format name cannot be empty")
	}
	if f.Decode == nil {
		return fmt.Errorf("format %q has no decoder", f.Name)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.add(f)
	return nil
}

// LookupFormat finds a registered format by name, case-insensitively.
func LookupFormat(name string) (Format, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.byName[strings.ToLower(name)]
	return f, ok
}

// FormatForPath finds the registered format claiming the extension of path.
func FormatForPath(path string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return Format{}, false
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	name, ok := registry.byExt[ext]
	if !ok {
		return Format{}, false
	}
	return registry.byName[name], true
}

// Formats returns the registered format names in registration order.
func Formats() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return append([]string(nil), registry.order...)
}

func registeredExtensions() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	var exts []string
	for _, name := range registry.order {
		exts = append(exts, registry.byName[name].Extensions...)
	}
	return exts
}

// Encode serializes v with format.
func Encode(v Value, format Format) ([]byte, error) {
	if format.Encode == nil {
		return nil, fmt.Errorf("%w: %q cannot encode", ErrUnsupportedFormat, format.Name)
	}
	if v.IsNil() {
		v = EmptyTable()
	}
	return format.Encode(v)
}

// detectFormat picks a decoder by content: JSON objects first, then TOML,
// then YAML documents holding a mapping, then INI.
func detectFormat(data []byte) (Format, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed) {
		return FormatJSON, true
	}
	var scratch map[string]any
	if _, err := toml.Decode(string(data), &scratch); err == nil {
		return FormatTOML, true
	}
	if v, err := decodeYAML(data); err == nil && (v.IsNil() || v.kind == KindTable) {
		return FormatYAML, true
	}
	if v, err := decodeINI(data); err == nil && v.tbl.Len() > 0 {
		return FormatINI, true
	}
	return Format{}, false
}

// decodeTable runs format's decoder and checks that the result is a table.
func decodeTable(format Format, data []byte, origin Origin) (Value, error) {
	v, err := format.Decode(data)
	if err != nil {
		return Value{}, fmt.Errorf("failed to parse %s: %w", format.Name, err)
	}
	switch v.kind {
	case KindNil:
		return EmptyTable().WithOrigin(origin), nil
	case KindTable:
		return v.stampOrigin(origin), nil
	}
	return Value{}, fmt.Errorf("%s document must hold a table at the top level, found %s", format.Name, v.kind)
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}

// JSON

func decodeJSON(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Nil(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func readJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			tbl := NewOrderedTable()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				item, err := readJSON(dec)
				if err != nil {
					return Value{}, fmt.Errorf("key %q: %w", key, err)
				}
				tbl.Set(key, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return TableValue(tbl), nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := readJSON(dec)
				if err != nil {
					return Value{}, fmt.Errorf("index %d: %w", len(items), err)
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Array(items...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		return parseNumber(string(t)), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Nil(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func encodeJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindTable:
		buf.WriteByte('{')
		for i, k := range v.tbl.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			child, _ := v.tbl.Get(k)
			if err := writeJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		data, err := json.Marshal(jsonSafe(v))
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}

// TOML

func decodeTOML(data []byte) (Value, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return Value{}, err
	}
	// Record document order per parent key; array-of-table elements share
	// the order of their array's key.
	order := make(map[string][]string)
	seen := make(map[string]bool)
	for _, key := range md.Keys() {
		for i := range key {
			full := strings.Join(key[:i+1], "\x00")
			if seen[full] {
				continue
			}
			seen[full] = true
			parent := strings.Join(key[:i], "\x00")
			order[parent] = append(order[parent], key[i])
		}
	}
	return fromTOML(raw, nil, order)
}

func fromTOML(x any, path []string, order map[string][]string) (Value, error) {
	switch t := x.(type) {
	case map[string]any:
		tbl := NewOrderedTable()
		for _, k := range order[strings.Join(path, "\x00")] {
			if child, ok := t[k]; ok {
				v, err := fromTOML(child, append(path[:len(path):len(path)], k), order)
				if err != nil {
					return Value{}, err
				}
				tbl.Set(k, v)
			}
		}
		for _, k := range sortedKeys(t) {
			if _, done := tbl.Get(k); done {
				continue
			}
			v, err := fromTOML(t[k], append(path[:len(path):len(path)], k), order)
			if err != nil {
				return Value{}, err
			}
			tbl.Set(k, v)
		}
		return TableValue(tbl), nil
	case []map[string]any:
		items := make([]Value, len(t))
		for i, m := range t {
			v, err := fromTOML(m, path, order)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Array(items...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromTOML(item, path, order)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Array(items...), nil
	}
	return FromNative(x, "")
}

func encodeTOML(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(toEncodable(v)); err != nil {
		return nil, fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// toEncodable converts v to native values accepted by the TOML and INI
// encoders: nil entries are dropped and 128-bit integers become strings.
func toEncodable(v Value) any {
	switch v.kind {
	case KindI128, KindU128:
		return v.n.String()
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, item := range v.arr {
			if !item.IsNil() {
				out = append(out, toEncodable(item))
			}
		}
		return out
	case KindTable:
		out := make(map[string]any, v.tbl.Len())
		v.tbl.Range(func(k string, child Value) bool {
			if !child.IsNil() {
				out[k] = toEncodable(child)
			}
			return true
		})
		return out
	}
	return v.Interface()
}

// INI

func decodeINI(data []byte) (Value, error) {
	file, err := ini.Load(data)
	if err != nil {
		return Value{}, err
	}
	root := NewOrderedTable()
	for _, section := range file.Sections() {
		target := root
		if section.Name() != ini.DefaultSection {
			target = NewOrderedTable()
		}
		for _, key := range section.Keys() {
			target.Set(key.Name(), String(key.Value()))
		}
		if target != root {
			root.Set(section.Name(), TableValue(target))
		}
	}
	return TableValue(root), nil
}

func encodeINI(v Value) ([]byte, error) {
	file := ini.Empty()
	var err error
	v.tbl.Range(func(k string, child Value) bool {
		switch child.kind {
		case KindTable:
			section, serr := file.NewSection(k)
			if serr != nil {
				err = serr
				return false
			}
			child.tbl.Range(func(name string, item Value) bool {
				if !item.kind.IsScalar() {
					err = fmt.Errorf("ini cannot represent %s at %q", item.kind, k+"."+name)
					return false
				}
				s, _ := item.AsString()
				_, err = section.NewKey(name, s)
				return err == nil
			})
		case KindArray:
			err = fmt.Errorf("ini cannot represent array at %q", k)
		case KindNil:
		default:
			s, _ := child.AsString()
			_, err = file.Section(ini.DefaultSection).NewKey(k, s)
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dotenv

func decodeDotenv(data []byte) (Value, error) {
	vars, err := godotenv.UnmarshalBytes(data)
	if err != nil {
		return Value{}, err
	}
	tbl := NewTable()
	for _, k := range sortedKeys(vars) {
		tbl.Set(k, String(vars[k]))
	}
	return TableValue(tbl), nil
}

func encodeDotenv(v Value) ([]byte, error) {
	vars := make(map[string]string, v.tbl.Len())
	var err error
	v.tbl.Range(func(k string, child Value) bool {
		if child.IsNil() {
			return true
		}
		if !child.kind.IsScalar() {
			err = fmt.Errorf("dotenv cannot represent %s at %q", child.kind, k)
			return false
		}
		vars[k], _ = child.AsString()
		return true
	})
	if err != nil {
		return nil, err
	}
	out, err := godotenv.Marshal(vars)
	if err != nil {
		return nil, err
	}
	return []byte(out + "\n"), nil
}
