// FILE: lixenwraith/layered/source_test.go
package layered

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySource(t *testing.T) {
	t.Run("StampsOrigin", func(t *testing.T) {
		v, err := Memory(map[string]any{"server": map[string]any{"port": 8080}}).Collect()
		require.NoError(t, err)
		assert.Equal(t, OriginMemory, v.Origin())

		port, ok := v.Get(MustParsePath("server.port"))
		require.True(t, ok)
		assert.Equal(t, int64(8080), port.Interface())
		assert.Equal(t, OriginMemory, port.Origin())
	})

	t.Run("Named", func(t *testing.T) {
		v, err := Memory(map[string]any{"a": 1}).Named("fixtures").Collect()
		require.NoError(t, err)
		a, _ := v.Get(MustParsePath("a"))
		assert.Equal(t, Origin("fixtures"), a.Origin())
	})

	t.Run("NilValueIsEmptyTable", func(t *testing.T) {
		v, err := MemoryValue(Nil()).Collect()
		require.NoError(t, err)
		assert.Equal(t, KindTable, v.Kind())

		v, err = Memory(nil).Collect()
		require.NoError(t, err)
		assert.Equal(t, KindTable, v.Kind())
	})

	t.Run("UnrepresentableData", func(t *testing.T) {
		_, err := Memory(map[string]any{"ch": make(chan int)}).Collect()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSource)
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("PrebuiltValueKeepsOwnOrigins", func(t *testing.T) {
		tree := TableValue(TableOf("a", String("x").WithOrigin("elsewhere"), "b", 1))
		v, err := MemoryValue(tree).Collect()
		require.NoError(t, err)

		a, _ := v.Get(MustParsePath("a"))
		b, _ := v.Get(MustParsePath("b"))
		assert.Equal(t, Origin("elsewhere"), a.Origin())
		assert.Equal(t, OriginMemory, b.Origin())
	})
}

func TestTextSource(t *testing.T) {
	t.Run("ExplicitFormat", func(t *testing.T) {
		v, err := StringSource("[server]\nport = 8080\n", FormatTOML).Collect()
		require.NoError(t, err)

		port, ok := v.Get(MustParsePath("server.port"))
		require.True(t, ok)
		assert.Equal(t, int64(8080), port.Interface())
		assert.Equal(t, Origin("string"), port.Origin())
	})

	t.Run("DetectsFormat", func(t *testing.T) {
		v, err := StringSource(`{"name": "app"}`, Format{}).Named("inline").Collect()
		require.NoError(t, err)
		name, _ := v.Get(MustParsePath("name"))
		assert.Equal(t, "app", name.Interface())
		assert.Equal(t, Origin("inline"), name.Origin())
	})

	t.Run("EmptyTextIsEmptyTable", func(t *testing.T) {
		v, err := StringSource("", FormatYAML).Collect()
		require.NoError(t, err)
		assert.Equal(t, KindTable, v.Kind())
		assert.Equal(t, 0, v.tbl.Len())
	})

	t.Run("DecodeFailure", func(t *testing.T) {
		_, err := StringSource("not = [valid", FormatTOML).Collect()
		var se *SourceError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, -1, se.Index)
		assert.Equal(t, Origin("string"), se.Origin)
	})

	t.Run("TopLevelMustBeTable", func(t *testing.T) {
		_, err := StringSource("[1, 2]", FormatJSON).Collect()
		require.ErrorIs(t, err, ErrSource)
		assert.Contains(t, err.Error(), "top level")
	})

	t.Run("ExpandEnv", func(t *testing.T) {
		doc := `
debug: true
place:
  name: Torre di Pisa
  longitude: ${LONGITUDE:-43.7224985}
  reviews: ${REVIEWS:-3866}
  creator:
    name: ${NAME:-John Smith}
    home: ${HOME_DIR}
`
		v, err := StringSource(doc, FormatYAML).ExpandEnv(map[string]string{}).Collect()
		require.NoError(t, err)
		assert.Equal(t, 43.7224985, mustGet(t, v, "place.longitude").Interface())
		assert.Equal(t, int64(3866), mustGet(t, v, "place.reviews").Interface())
		assert.Equal(t, "John Smith", mustGet(t, v, "place.creator.name").Interface())
		assert.Equal(t, "${HOME_DIR}", mustGet(t, v, "place.creator.home").Interface())

		v, err = StringSource(doc, FormatYAML).ExpandEnv(map[string]string{
			"LONGITUDE": "1.5",
			"REVIEWS":   "",
			"NAME":      "Galileo",
			"HOME_DIR":  "/home/g",
		}).Collect()
		require.NoError(t, err)
		assert.Equal(t, 1.5, mustGet(t, v, "place.longitude").Interface())
		assert.Equal(t, int64(3866), mustGet(t, v, "place.reviews").Interface(), "empty value falls back to the default")
		assert.Equal(t, "Galileo", mustGet(t, v, "place.creator.name").Interface())
		assert.Equal(t, "/home/g", mustGet(t, v, "place.creator.home").Interface())
	})

	t.Run("NoExpansionByDefault", func(t *testing.T) {
		v, err := StringSource("name: ${NAME:-x}\n", FormatYAML).Collect()
		require.NoError(t, err)
		assert.Equal(t, "${NAME:-x}", mustGet(t, v, "name").Interface())
	})

	t.Run("ExpandEnvFromProcess", func(t *testing.T) {
		t.Setenv("LAYERED_TEXT_PORT", "9090")
		v, err := StringSource("port = ${LAYERED_TEXT_PORT}\n", FormatTOML).ExpandEnv(nil).Collect()
		require.NoError(t, err)
		assert.Equal(t, int64(9090), mustGet(t, v, "port").Interface())
	})
}

func mustGet(t *testing.T, v Value, path string) Value {
	t.Helper()
	got, ok := v.Get(MustParsePath(path))
	require.True(t, ok, "path %s", path)
	return got
}

func TestExpandVars(t *testing.T) {
	vars := map[string]string{
		"TEST_VAR": "value",
		"A":        "a",
		"B":        "b",
		"EMPTY":    "",
		"PORT":     "8080",
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"NoReferences", "hello world", "hello world"},
		{"Simple", "prefix ${TEST_VAR} suffix", "prefix value suffix"},
		{"MissingKept", "prefix ${MISSING} suffix", "prefix ${MISSING} suffix"},
		{"MissingWithDefault", "${MISSING:-43.7224985}", "43.7224985"},
		{"SetWithDefault", "${TEST_VAR:-other}", "value"},
		{"EmptyWithDefault", "${EMPTY:-fallback}", "fallback"},
		{"EmptyWithoutDefault", "[${EMPTY}]", "[]"},
		{"Consecutive", "${A}${B}", "ab"},
		{"MixedExistence", "${A} and ${MISSING}", "a and ${MISSING}"},
		{"ColonWithoutDash", "${TEST_VAR:not_default}", "${TEST_VAR:not_default}"},
		{"FirstColonDashOnly", "${MISSING:-default:-with:-colons}", "default:-with:-colons"},
		{"Unclosed", "port ${PORT and more", "port ${PORT and more"},
		{"BareDollarUntouched", "pa$$word $PORT", "pa$$word $PORT"},
		{"EmptyDefault", "${MISSING:-}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandVars(tt.in, vars))
		})
	}
}

func TestStructSource(t *testing.T) {
	type server struct {
		Host    string        `toml:"host"`
		Port    int           `toml:"port"`
		Timeout time.Duration `toml:"timeout"`
	}
	type defaults struct {
		Name   string   `toml:"name"`
		Server server   `toml:"server"`
		Tags   []string `toml:"tags"`
	}

	src := Struct(&defaults{
		Name:   "app",
		Server: server{Host: "localhost", Port: 8080, Timeout: 5 * time.Second},
		Tags:   []string{"a", "b"},
	})
	assert.Equal(t, OriginDefault, src.Origin())

	v, err := src.Collect()
	require.NoError(t, err)

	host, ok := v.Get(MustParsePath("server.host"))
	require.True(t, ok)
	assert.Equal(t, "localhost", host.Interface())
	assert.Equal(t, OriginDefault, host.Origin())

	port, _ := v.Get(MustParsePath("server.port"))
	assert.Equal(t, int64(8080), port.Interface())

	timeout, _ := v.Get(MustParsePath("server.timeout"))
	assert.Equal(t, "5s", timeout.Interface())

	tag, _ := v.Get(MustParsePath("tags[1]"))
	assert.Equal(t, "b", tag.Interface())
}

func TestFuture(t *testing.T) {
	t.Run("Ready", func(t *testing.T) {
		v, err := Ready(Int(1), nil).Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), v.Interface())
	})

	t.Run("GoDeliversResult", func(t *testing.T) {
		f := Go(context.Background(), func(context.Context) (Value, error) {
			time.Sleep(5 * time.Millisecond)
			return String("done"), nil
		})
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "done", v.Interface())

		select {
		case <-f.Done():
		default:
			t.Fatal("Done must be closed after Await returns a result")
		}
	})

	t.Run("GoDeliversError", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Go(context.Background(), func(context.Context) (Value, error) {
			return Value{}, boom
		}).Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("AwaitHonoursCancellation", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		f := Go(context.Background(), func(context.Context) (Value, error) {
			<-block
			return Int(1), nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("CompletedResultWinsOverCancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v, err := Ready(Int(7), nil).Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v.Interface())
	})

	t.Run("AsyncAdapter", func(t *testing.T) {
		src := Async(Memory(map[string]any{"k": "v"}))
		assert.Equal(t, OriginMemory, src.Origin())
		assert.True(t, src.Required())

		v, err := src.CollectAsync(context.Background()).Await(context.Background())
		require.NoError(t, err)
		k, _ := v.Get(MustParsePath("k"))
		assert.Equal(t, "v", k.Interface())
	})
}
