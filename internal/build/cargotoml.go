package build

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Manifest is the slice of Cargo.toml the engine reads -- just enough to
// name the primary crate for diagnostics (dependency/feature-graph
// resolution is explicitly out of scope, so nothing else is parsed).
type Manifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// ReadManifest reads and decodes <dir>/Cargo.toml. A missing [package]
// table (workspace-root manifests have none) decodes to a zero Manifest,
// not an error -- callers treat an empty Package.Name as "no primary
// package here".
func ReadManifest(dir string) (*Manifest, error) {
	content, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
