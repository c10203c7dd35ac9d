// File: lixenwraith/layered/doc.go

// Package layered merges configuration from ordered sources (files in several
// formats, environment variables, command-line flags, in-memory maps,
// programmatic defaults and overrides) into one hierarchical Value tree, and
// extracts typed data from that tree.
//
// Features:
//   - Value tree with per-node origin tracking
//   - Path addressing: server.port, servers[0].name, a."dotted.key"
//   - Deterministic merge: tables merge recursively, everything else
//     (arrays included) is replaced by the later source
//   - Blocking and asynchronous sources, joined in registration order
//   - TOML, YAML, JSON, INI and dotenv formats, plus RegisterFormat
//   - Reflection-free decoding through the Decoder and Unmarshaler
//   - Reflective Scan into tagged structs with optional validation
//
// Quick Start:
//
//	cfg, err := layered.NewBuilder().
//	    SetDefault("server.port", 8080).
//	    WithOptionalFile("config.toml").
//	    WithEnvPrefix("MYAPP"). // MYAPP__SERVER__PORT=9090
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	port, _ := cfg.Int64("server.port")
//
// Typed Extraction:
//
//	type Server struct {
//	    Host string
//	    Port int
//	}
//
//	func (s *Server) UnmarshalConfig(d *layered.Decoder) error {
//	    return d.Record(
//	        layered.Required("host", &s.Host),
//	        layered.OptionalDefault("port", &s.Port, 8080),
//	    )
//	}
//
//	srv, err := layered.TryGet[Server](cfg, "server")
//
// Precedence (highest to lowest):
//  1. Overrides (SetOverride)
//  2. Sources, the most recently added first
//  3. Defaults (SetDefault, WithDefaults)
//
// Array values are replaced, never concatenated: a later source that sets
// servers = [...] discards every element an earlier source contributed.
//
// Thread Safety:
// Published snapshots are immutable and safe to share. Registration and
// refresh are serialised by the Config.
package layered
