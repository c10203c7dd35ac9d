// FILE: lixenwraith/layered/yaml.go
package layered

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeYAML walks the node tree rather than decoding into maps so that key
// order and integer precision survive.
func decodeYAML(data []byte) (Value, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Nil(), nil
		}
		return Value{}, err
	}
	var w yamlWalker
	return w.value(&doc, 0)
}

const maxYAMLDepth = 512

// yamlWalker converts nodes while counting them. Aliases are expanded on every
// reference, so the counts guard against documents that repeat anchors to
// blow up in size.
type yamlWalker struct {
	nodes      int // nodes converted
	aliasNodes int // nodes converted while expanding an alias
	aliasDepth int
}

// allowedAliasRatio mirrors the limit yaml.v3 applies when unmarshalling:
// small documents may consist almost entirely of aliases, large ones may not.
func allowedAliasRatio(nodes int) float64 {
	switch {
	case nodes <= 400_000:
		return 0.99
	case nodes >= 4_000_000:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(nodes-400_000)/3_600_000)
	}
}

func (w *yamlWalker) count() error {
	w.nodes++
	if w.aliasDepth > 0 {
		w.aliasNodes++
	}
	if w.aliasNodes > 100 && w.nodes > 1000 &&
		float64(w.aliasNodes)/float64(w.nodes) > allowedAliasRatio(w.nodes) {
		return errors.New("yaml document contains excessive aliasing")
	}
	return nil
}

func (w *yamlWalker) value(n *yaml.Node, depth int) (Value, error) {
	if depth > maxYAMLDepth {
		return Value{}, errors.New("yaml document nested too deeply")
	}
	if err := w.count(); err != nil {
		return Value{}, err
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Nil(), nil
		}
		return w.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		w.aliasDepth++
		defer func() { w.aliasDepth-- }()
		return w.value(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]Value, len(n.Content))
		for i, child := range n.Content {
			v, err := w.value(child, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return Array(items...), nil
	case yaml.MappingNode:
		tbl := NewOrderedTable()
		var merged []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.ShortTag() == "!!merge" {
				merged = append(merged, valNode)
				continue
			}
			v, err := w.value(valNode, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", keyNode.Value, err)
			}
			tbl.Set(keyNode.Value, v)
		}
		// Merge keys contribute only what the mapping does not define itself.
		for _, m := range merged {
			if err := w.merge(tbl, m, depth+1); err != nil {
				return Value{}, err
			}
		}
		return TableValue(tbl), nil
	case yaml.ScalarNode:
		return yamlScalar(n)
	}
	return Value{}, fmt.Errorf("unsupported yaml node kind %d at line %d", n.Kind, n.Line)
}

func (w *yamlWalker) merge(tbl *Table, n *yaml.Node, depth int) error {
	if n.Kind == yaml.SequenceNode {
		for _, child := range n.Content {
			if err := w.merge(tbl, child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	src, err := w.value(n, depth)
	if err != nil {
		return err
	}
	if src.kind != KindTable {
		return fmt.Errorf("merge key at line %d must reference a mapping", n.Line)
	}
	src.tbl.Range(func(k string, v Value) bool {
		if _, exists := tbl.Get(k); !exists {
			tbl.Set(k, v)
		}
		return true
	})
	return nil
}

func yamlScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Nil(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		s := strings.ReplaceAll(n.Value, "_", "")
		if i, err := strconv.ParseInt(s, 0, 64); err == nil {
			return Int(i), nil
		}
		if b, ok := new(big.Int).SetString(s, 0); ok {
			if v, err := BigInt(b); err == nil {
				return v, nil
			}
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
	return String(n.Value), nil
}

func encodeYAML(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toYAML(v)); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toYAML(v Value) *yaml.Node {
	switch v.kind {
	case KindTable:
		n := &yaml.Node{Kind: yaml.MappingNode}
		v.tbl.Range(func(k string, child Value) bool {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toYAML(child))
			return true
		})
		return n
	case KindArray:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range v.arr {
			n.Content = append(n.Content, toYAML(item))
		}
		return n
	case KindNil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.b)}
	case KindInt, KindI128, KindU128:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: s}
	case KindFloat:
		n := &yaml.Node{}
		if err := n.Encode(v.f); err != nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.f, 'g', -1, 64)}
		}
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.s}
}
