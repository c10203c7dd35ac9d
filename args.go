// FILE: lixenwraith/layered/args.go
package layered

import (
	"context"
	"fmt"
	"strings"
)

// ArgsSource turns command-line flags into configuration values:
//
//	--server.port=8080   --server.port 8080   --debug
//
// Flag names are paths. Values are stored as strings, and a flag followed by
// another flag or by nothing is stored as "true". Arguments not starting with
// "--" are skipped, as is a bare "--".
type ArgsSource struct {
	args   []string
	origin Origin
}

// Args creates a source over args, usually os.Args[1:].
func Args(args []string) *ArgsSource {
	return &ArgsSource{args: args, origin: OriginArgs}
}

// Named overrides the "command line" origin.
func (s *ArgsSource) Named(origin Origin) *ArgsSource {
	s.origin = origin
	return s
}

func (s *ArgsSource) Origin() Origin { return s.origin }
func (s *ArgsSource) Required() bool { return true }

func (s *ArgsSource) Collect() (Value, error) {
	v, err := parseArgs(s.args, s.origin)
	if err != nil {
		return Value{}, &SourceError{Index: -1, Origin: s.origin, Err: err}
	}
	return v, nil
}

func (s *ArgsSource) CollectAsync(context.Context) *Future {
	return Ready(s.Collect())
}

func parseArgs(args []string, origin Origin) (Value, error) {
	root := EmptyTable().WithOrigin(origin)
	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			i++
			continue
		}

		content := strings.TrimPrefix(arg, "--")
		if content == "" {
			i++
			continue
		}

		var key, value string
		if k, v, ok := strings.Cut(content, "="); ok {
			key, value = k, v
			i++
		} else {
			key = content
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				value = "true"
				i++
			} else {
				value = args[i+1]
				i += 2
			}
		}

		if key == "" {
			continue
		}

		path, err := ParsePath(key)
		if err != nil {
			return Value{}, fmt.Errorf("invalid command-line key %q: %w", key, err)
		}
		if err := root.Set(path, String(value).WithOrigin(origin)); err != nil {
			return Value{}, fmt.Errorf("invalid command-line key %q: %w", key, err)
		}
	}
	return root, nil
}
