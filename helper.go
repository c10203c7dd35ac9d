// File: lixenwraith/layered/helper.go
package layered

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// CaseFunc converts an identifier between naming styles. It is used for
// environment keys (EnvSource.Convert) and enum variant matching (WithEnumCase).
type CaseFunc func(string) string

// Case strategies backed by strcase.
var (
	CaseSnake          CaseFunc = strcase.ToSnake
	CaseScreamingSnake CaseFunc = strcase.ToScreamingSnake
	CaseKebab          CaseFunc = strcase.ToKebab
	CaseCamel          CaseFunc = strcase.ToCamel
	CaseLowerCamel     CaseFunc = strcase.ToLowerCamel
	CaseLower          CaseFunc = strings.ToLower
)

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// leaf is one scalar (or empty container) of a flattened tree.
type leaf struct {
	path  Path
	value Value
}

// flatten lists every leaf of v in key order. Empty tables and arrays are
// reported as leaves themselves so that they remain visible in listings.
func flatten(v Value, prefix Path) []leaf {
	var out []leaf
	switch v.kind {
	case KindTable:
		if v.tbl.Len() == 0 {
			return []leaf{{path: prefix, value: v}}
		}
		v.tbl.Range(func(k string, child Value) bool {
			out = append(out, flatten(child, prefix.Child(k))...)
			return true
		})
	case KindArray:
		if len(v.arr) == 0 {
			return []leaf{{path: prefix, value: v}}
		}
		for i, item := range v.arr {
			out = append(out, flatten(item, prefix.At(i))...)
		}
	default:
		out = append(out, leaf{path: prefix, value: v})
	}
	return out
}

// joinPath renders key segments split on sep as a Path, turning purely
// numeric segments into indices when numericIndex is set. Numbers above
// MaxIndex stay keys.
func joinPath(segments []string, numericIndex bool) Path {
	path := make(Path, 0, len(segments))
	for _, s := range segments {
		if numericIndex && isDigits(s) {
			if n, err := strconv.Atoi(s); err == nil && n <= MaxIndex {
				path = append(path, Index(n))
				continue
			}
		}
		path = append(path, Key(s))
	}
	return path
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
