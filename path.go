// FILE: lixenwraith/layered/path.go
package layered

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment is one step of a Path: either a table key or an array index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a key segment.
func Key(name string) Segment { return Segment{key: name} }

// Index returns an index segment. Negative indices are clamped to zero.
func Index(i int) Segment { return Segment{index: max(i, 0), isIndex: true} }

// IsIndex reports whether s addresses an array element.
func (s Segment) IsIndex() bool { return s.isIndex }

// Key returns the key of a key segment.
func (s Segment) Key() (string, bool) { return s.key, !s.isIndex }

// Index returns the position of an index segment.
func (s Segment) Index() (int, bool) { return s.index, s.isIndex }

func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return formatKey(s.key)
}

// MaxIndex is the largest array index a Path may write through. Writing pads
// arrays with nil up to the index, so the bound caps what one key can allocate.
const MaxIndex = 1<<16 - 1

// Path addresses a node of a Value tree. The empty Path addresses the root.
// Paths are immutable; the builder methods return new paths.
type Path []Segment

// ParsePath parses the dotted path syntax:
//
//	path    := segment ('.' segment)*
//	segment := (key | '"' quoted '"') ('[' digits ']')*
//
// Bare keys consist of letters, digits, '-' and '_'. Quoted keys may contain
// anything, with '"' and '\' escaped by a backslash. The empty string parses to
// the root path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	p := &pathParser{in: s}
	return p.parse()
}

// MustParsePath is like ParsePath but panics on a syntax error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPath builds a path from segments.
func NewPath(segments ...Segment) Path {
	return slices.Clone(Path(segments))
}

// Child returns p extended by a key segment.
func (p Path) Child(key string) Path {
	return append(slices.Clone(p), Key(key))
}

// At returns p extended by an index segment.
func (p Path) At(i int) Path {
	return append(slices.Clone(p), Index(i))
}

// Parent returns p without its last segment; the root is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return p
	}
	return slices.Clone(p[:len(p)-1])
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p, other)
}

// String renders p in the syntax accepted by ParsePath. A path that starts
// with an index, such as an element of a root array, renders as "[0].name"
// for diagnostics only; ParsePath rejects it because keys start every path.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 && !seg.isIndex {
			b.WriteByte('.')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// checkIndices rejects index segments above MaxIndex, reporting the offset
// the same index would have in the rendered path.
func (p Path) checkIndices() error {
	for i, seg := range p {
		if seg.isIndex && seg.index > MaxIndex {
			return &PathSyntaxError{
				Input:   p.String(),
				Offset:  len(p[:i].String()) + 1,
				Message: fmt.Sprintf("index %d exceeds maximum %d", seg.index, MaxIndex),
			}
		}
	}
	return nil
}

func (p Path) display() string {
	if len(p) == 0 {
		return "root"
	}
	return strconv.Quote(p.String())
}

// Eval walks root along p. A key on a non-table or an index on a non-array
// yields a TypeMismatchError; an absent key or out-of-range index yields a
// NotFoundError. Both carry the path traversed and the origin of the node
// where evaluation stopped.
func (p Path) Eval(root Value) (Value, error) {
	cur := root
	for i, seg := range p {
		if seg.isIndex {
			if cur.kind != KindArray {
				return Value{}, &TypeMismatchError{Path: slices.Clone(p[:i]), Expected: "array", Found: cur.kind, Origin: cur.origin}
			}
			if seg.index >= len(cur.arr) {
				return Value{}, &NotFoundError{Path: slices.Clone(p[:i+1]), Origin: cur.origin}
			}
			cur = cur.arr[seg.index]
			continue
		}
		if cur.kind != KindTable {
			return Value{}, &TypeMismatchError{Path: slices.Clone(p[:i]), Expected: "table", Found: cur.kind, Origin: cur.origin}
		}
		next, ok := cur.tbl.Get(seg.key)
		if !ok {
			return Value{}, &NotFoundError{Path: slices.Clone(p[:i+1]), Origin: cur.origin}
		}
		cur = next
	}
	return cur, nil
}

type pathParser struct {
	in  string
	pos int
}

func (p *pathParser) parse() (Path, error) {
	var path Path
	for {
		seg, err := p.key()
		if err != nil {
			return nil, err
		}
		path = append(path, seg)

		for p.peek() == '[' {
			idx, err := p.index()
			if err != nil {
				return nil, err
			}
			path = append(path, idx)
		}

		if p.pos == len(p.in) {
			return path, nil
		}
		if p.peek() != '.' {
			return nil, p.errorf(p.pos, "unexpected character %q", p.rune())
		}
		p.pos++
		if p.pos == len(p.in) {
			return nil, p.errorf(p.pos, "expected key after '.'")
		}
	}
}

func (p *pathParser) key() (Segment, error) {
	if p.peek() == '"' {
		return p.quoted()
	}
	start := p.pos
	for p.pos < len(p.in) {
		r, size := utf8.DecodeRuneInString(p.in[p.pos:])
		if !isKeyRune(r) {
			break
		}
		p.pos += size
	}
	if p.pos == start {
		if p.pos == len(p.in) {
			return Segment{}, p.errorf(p.pos, "expected key")
		}
		return Segment{}, p.errorf(p.pos, "expected key, found %q", p.rune())
	}
	return Key(p.in[start:p.pos]), nil
}

func (p *pathParser) quoted() (Segment, error) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.in) {
		c := p.in[p.pos]
		switch c {
		case '"':
			p.pos++
			return Key(b.String()), nil
		case '\\':
			if p.pos+1 >= len(p.in) {
				return Segment{}, p.errorf(start, "unterminated quoted key")
			}
			next := p.in[p.pos+1]
			if next != '"' && next != '\\' {
				return Segment{}, p.errorf(p.pos, "invalid escape sequence \\%c", next)
			}
			b.WriteByte(next)
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return Segment{}, p.errorf(start, "unterminated quoted key")
}

func (p *pathParser) index() (Segment, error) {
	open := p.pos
	p.pos++ // '['
	start := p.pos
	for p.pos < len(p.in) && p.in[p.pos] >= '0' && p.in[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		if p.pos == len(p.in) {
			return Segment{}, p.errorf(p.pos, "expected index")
		}
		return Segment{}, p.errorf(p.pos, "expected index digit, found %q", p.rune())
	}
	if p.peek() != ']' {
		return Segment{}, p.errorf(p.pos, "expected ']' to close index opened at offset %d", open)
	}
	n, err := strconv.Atoi(p.in[start:p.pos])
	if err != nil || n > MaxIndex {
		return Segment{}, p.errorf(start, "index %s exceeds maximum %d", p.in[start:p.pos], MaxIndex)
	}
	p.pos++ // ']'
	return Index(n), nil
}

func (p *pathParser) peek() byte {
	if p.pos < len(p.in) {
		return p.in[p.pos]
	}
	return 0
}

func (p *pathParser) rune() rune {
	r, _ := utf8.DecodeRuneInString(p.in[p.pos:])
	return r
}

func (p *pathParser) errorf(offset int, format string, args ...any) error {
	return &PathSyntaxError{Input: p.in, Offset: offset, Message: fmt.Sprintf(format, args...)}
}

func isKeyRune(r rune) bool {
	return r == '-' || r == '_' || unicode.IsLetter(r) || (r >= '0' && r <= '9')
}

// formatKey renders a key bare when it is a valid bare key and quoted otherwise.
func formatKey(key string) string {
	bare := key != ""
	for _, r := range key {
		if !isKeyRune(r) {
			bare = false
			break
		}
	}
	if bare {
		return key
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(key); i++ {
		if key[i] == '"' || key[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(key[i])
	}
	b.WriteByte('"')
	return b.String()
}
