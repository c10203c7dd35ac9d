// FILE: lixenwraith/layered/env.go
package layered

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvSource collects process environment variables sharing a prefix.
//
// With prefix "APP" and separator "__", APP__SERVER__PORT=8080 becomes
// server.port = "8080". Values stay strings unless TryParsing is enabled;
// the deserialization bridge coerces them to the requested type.
type EnvSource struct {
	prefix          string
	separator       string
	prefixSeparator *string
	listSeparator   string
	listParseKeys   map[string]bool
	caseSensitive   bool
	ignoreEmpty     bool
	tryParsing      bool
	keepPrefix      bool
	convert         CaseFunc
	vars            map[string]string
	origin          Origin
}

// Env creates an environment source. An empty prefix accepts every variable.
func Env(prefix string) *EnvSource {
	return &EnvSource{prefix: prefix, origin: OriginEnvironment}
}

// Separator splits variable names into nested keys. Without one, each
// variable becomes a single top-level key.
func (s *EnvSource) Separator(sep string) *EnvSource {
	s.separator = sep
	return s
}

// PrefixSeparator sets what separates the prefix from the rest of the name.
// It defaults to the separator, or "_" when no separator is set.
func (s *EnvSource) PrefixSeparator(sep string) *EnvSource {
	s.prefixSeparator = &sep
	return s
}

// ListSeparator splits values containing sep into arrays of strings.
func (s *EnvSource) ListSeparator(sep string) *EnvSource {
	s.listSeparator = sep
	return s
}

// ListParseKeys restricts list splitting to the given dotted keys.
func (s *EnvSource) ListParseKeys(keys ...string) *EnvSource {
	if s.listParseKeys == nil {
		s.listParseKeys = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		s.listParseKeys[strings.ToLower(k)] = true
	}
	return s
}

// CaseSensitive keeps variable names as written instead of lowercasing them.
func (s *EnvSource) CaseSensitive() *EnvSource {
	s.caseSensitive = true
	return s
}

// IgnoreEmpty treats variables set to the empty string as unset.
func (s *EnvSource) IgnoreEmpty() *EnvSource {
	s.ignoreEmpty = true
	return s
}

// TryParsing stores booleans, integers and floats as typed values.
func (s *EnvSource) TryParsing() *EnvSource {
	s.tryParsing = true
	return s
}

// KeepPrefix nests every key under the prefix itself: APP__PORT becomes app.port.
func (s *EnvSource) KeepPrefix() *EnvSource {
	s.keepPrefix = true
	return s
}

// Convert applies fn to every key segment.
func (s *EnvSource) Convert(fn CaseFunc) *EnvSource {
	s.convert = fn
	return s
}

// Vars replaces the process environment with vars.
func (s *EnvSource) Vars(vars map[string]string) *EnvSource {
	s.vars = vars
	return s
}

// Named overrides the "environment" origin.
func (s *EnvSource) Named(origin Origin) *EnvSource {
	s.origin = origin
	return s
}

func (s *EnvSource) Origin() Origin { return s.origin }
func (s *EnvSource) Required() bool { return true }

func (s *EnvSource) Collect() (Value, error) {
	vars := s.vars
	if vars == nil {
		vars = environ()
	}

	prefixSep := "_"
	switch {
	case s.prefixSeparator != nil:
		prefixSep = *s.prefixSeparator
	case s.separator != "":
		prefixSep = s.separator
	}
	pattern := ""
	if s.prefix != "" {
		pattern = s.fold(s.prefix + prefixSep)
	}

	root := EmptyTable().WithOrigin(s.origin)
	for _, name := range sortedKeys(vars) {
		raw := vars[name]
		if s.ignoreEmpty && raw == "" {
			continue
		}

		key := s.fold(name)
		if pattern != "" {
			if !strings.HasPrefix(key, pattern) {
				continue
			}
			key = key[len(pattern):]
		}
		if key == "" {
			continue
		}

		segments := []string{key}
		if s.separator != "" {
			segments = strings.Split(key, s.separator)
		}
		if s.keepPrefix && s.prefix != "" {
			segments = append([]string{s.fold(s.prefix)}, segments...)
		}
		if s.convert != nil {
			for i := range segments {
				segments[i] = s.convert(segments[i])
			}
		}

		path := joinPath(segments, true)
		if path[0].isIndex {
			// The first segment names a top-level key even when numeric.
			path[0] = Key(segments[0])
		}
		if err := root.Set(path, s.value(strings.ToLower(strings.Join(segments, ".")), raw)); err != nil {
			return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: fmt.Errorf("variable %s: %w", name, err)}
		}
	}
	return root, nil
}

// CollectAsync collects synchronously; reading the environment does not block.
func (s *EnvSource) CollectAsync(context.Context) *Future {
	return Ready(s.Collect())
}

func (s *EnvSource) fold(name string) string {
	if s.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

func (s *EnvSource) value(key, raw string) Value {
	if s.tryParsing {
		if v := ParseScalar(raw); v.kind != KindString {
			return v.WithOrigin(s.origin)
		}
	}
	if s.listSeparator != "" && strings.Contains(raw, s.listSeparator) &&
		(s.listParseKeys == nil || s.listParseKeys[key]) {
		parts := strings.Split(raw, s.listSeparator)
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = String(p).WithOrigin(s.origin)
		}
		return Array(items...).WithOrigin(s.origin)
	}
	return String(raw).WithOrigin(s.origin)
}

func orEnviron(vars map[string]string) map[string]string {
	if vars == nil {
		return environ()
	}
	return vars
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			vars[name] = value
		}
	}
	return vars
}

// expandVars replaces ${NAME} with the value of NAME and ${NAME:-default}
// with the value, or default when NAME is unset or empty. References to
// unset variables without a default, and a "${" never closed, are kept as
// written. A bare $NAME is left alone.
func expandVars(text string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(text))
	for {
		open := strings.Index(text, "${")
		if open < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:open])
		rest := text[open+2:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(text[open:])
			return b.String()
		}
		expr := rest[:end]
		text = rest[end+1:]

		if name, def, ok := strings.Cut(expr, ":-"); ok {
			if value := vars[name]; value != "" {
				b.WriteString(value)
			} else {
				b.WriteString(def)
			}
			continue
		}
		if value, ok := vars[expr]; ok {
			b.WriteString(value)
			continue
		}
		b.WriteString("${" + expr + "}")
	}
}
