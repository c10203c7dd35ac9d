// FILE: lixenwraith/layered/path_test.go
package layered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		tests := []struct {
			in   string
			want Path
		}{
			{"", Path{}},
			{"a", Path{Key("a")}},
			{"a.b.c", Path{Key("a"), Key("b"), Key("c")}},
			{"a.b[0].c", Path{Key("a"), Key("b"), Index(0), Key("c")}},
			{`a."weird.key"`, Path{Key("a"), Key("weird.key")}},
			{`"with[bracket]"[1]`, Path{Key("with[bracket]"), Index(1)}},
			{`"esc\"aped\\"`, Path{Key(`esc"aped\`)}},
			{`""`, Path{Key("")}},
			{"matrix[1][22]", Path{Key("matrix"), Index(1), Index(22)}},
			{"my-key_2.ключ", Path{Key("my-key_2"), Key("ключ")}},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				got, err := ParsePath(tt.in)
				require.NoError(t, err)
				assert.True(t, tt.want.Equal(got), "got %v", got)
			})
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			in     string
			offset int
		}{
			{".a", 0},
			{"a..b", 2},
			{"a.", 2},
			{"a[x]", 2},
			{"a[1", 3},
			{"a[]", 2},
			{"a[-1]", 2},
			{"a[99999999999999999999999]", 2},
			{"list[65536]", 5},
			{`a."open`, 2},
			{`"bad\n"`, 4},
			{"a b", 1},
			{"[0]", 0},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				_, err := ParsePath(tt.in)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPathSyntax)

				var pe *PathSyntaxError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.offset, pe.Offset)
				assert.Equal(t, tt.in, pe.Input)
				assert.NotEmpty(t, pe.Message)
			})
		}
	})

	t.Run("MustParsePathPanics", func(t *testing.T) {
		assert.Panics(t, func() { MustParsePath("a..b") })
	})
}

func TestPathString(t *testing.T) {
	inputs := []string{
		"a.b.c",
		"servers[0].name",
		`a."weird.key".b`,
		`"sp ace"`,
		`""`,
		`"q\"uote"[3]`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			p := MustParsePath(in)
			assert.Equal(t, in, p.String())

			again, err := ParsePath(p.String())
			require.NoError(t, err)
			assert.True(t, p.Equal(again))
		})
	}

	t.Run("BuilderMethodsCopy", func(t *testing.T) {
		base := MustParsePath("a.b")
		child := base.Child("c")
		indexed := base.At(2)
		assert.Equal(t, "a.b", base.String())
		assert.Equal(t, "a.b.c", child.String())
		assert.Equal(t, "a.b[2]", indexed.String())
		assert.Equal(t, "a", base.Parent().String())
		assert.Equal(t, "", Path{}.Parent().String())
		assert.Equal(t, "a.b[0]", NewPath(Key("a"), Key("b"), Index(0)).String())
	})

	t.Run("LargestIndex", func(t *testing.T) {
		p, err := ParsePath("list[65535]")
		require.NoError(t, err)
		assert.Equal(t, NewPath(Key("list"), Index(MaxIndex)), p)
	})

	t.Run("LeadingIndexHasNoParseableForm", func(t *testing.T) {
		p := Path{}.At(0).Child("name")
		assert.Equal(t, "[0].name", p.String())

		_, err := ParsePath(p.String())
		assert.ErrorIs(t, err, ErrPathSyntax, "must not parse back as a different path")
	})

	t.Run("Segments", func(t *testing.T) {
		name, ok := Key("x").Key()
		assert.True(t, ok)
		assert.Equal(t, "x", name)
		_, ok = Key("x").Index()
		assert.False(t, ok)

		i, ok := Index(4).Index()
		assert.True(t, ok)
		assert.Equal(t, 4, i)
		assert.True(t, Index(4).IsIndex())
	})
}

func TestPathEval(t *testing.T) {
	tree := TableValue(TableOf(
		"servers", []any{TableOf("name", "x")},
		"db", TableOf("host", "localhost"),
	)).stampOrigin("app.toml")

	t.Run("Resolves", func(t *testing.T) {
		v, err := MustParsePath("servers[0].name").Eval(tree)
		require.NoError(t, err)
		assert.Equal(t, "x", v.Interface())

		root, err := Path{}.Eval(tree)
		require.NoError(t, err)
		assert.True(t, Equal(tree, root))
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		_, err := MustParsePath("servers[1].name").Eval(tree)
		require.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "servers[1]", nf.Path.String())
		assert.Equal(t, Origin("app.toml"), nf.Origin)
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := MustParsePath("db.port").Eval(tree)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "db.port", nf.Path.String())
		assert.Contains(t, err.Error(), `"db.port"`)
	})

	t.Run("KeyOnArray", func(t *testing.T) {
		_, err := MustParsePath("servers.name").Eval(tree)
		require.ErrorIs(t, err, ErrTypeMismatch)

		var tm *TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "servers", tm.Path.String())
		assert.Equal(t, "table", tm.Expected)
		assert.Equal(t, KindArray, tm.Found)
	})

	t.Run("IndexOnScalar", func(t *testing.T) {
		_, err := MustParsePath("db.host[0]").Eval(tree)
		var tm *TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, "db.host", tm.Path.String())
		assert.Equal(t, "array", tm.Expected)
		assert.Equal(t, KindString, tm.Found)
	})
}
