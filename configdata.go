// Package ccblock provides embedded assets for the ccblock tool.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The CLI copies it into the data directory on first
// run so users have a commented file to edit.
package ccblock

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
