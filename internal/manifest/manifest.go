// Package manifest reads the dependency sets of a package.json file.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FileName is the manifest file name looked up in the package directory.
const FileName = "package.json"

// ErrNoManifest is returned when the package directory has no manifest.
var ErrNoManifest = errors.New("package.json not found")

// DevDependencies maps a package name to its version range.
type DevDependencies map[string]string

// Has reports whether name is a dev dependency with non-empty metadata.
func (d DevDependencies) Has(name string) bool {
	return d[name] != ""
}

// Manifest is the subset of package.json used for mirroring.
type Manifest struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies DevDependencies   `json:"devDependencies"`
}

// Load reads dir/package.json.
func Load(dir string) (*Manifest, error) {
	p := filepath.Join(dir, FileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, p)
		}
		return nil, fmt.Errorf("read manifest %s: %w", p, err)
	}
	return Parse(data)
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
