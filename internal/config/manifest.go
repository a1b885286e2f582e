package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest lists the files of a batch, replacing a hard-coded list in the driver.
//
//	source_dir: ../backend/data
//	out_dir: ../data_encrypted
//	files:
//	  - source: char_freq.json
//	    destination: char_freq.json.enc
type Manifest struct {
	SourceDir string     `yaml:"source_dir"`
	OutDir    string     `yaml:"out_dir"`
	Files     []FileTask `yaml:"files"`
}

// LoadManifest reads a YAML manifest.
// Relative source_dir and out_dir values are resolved against the manifest's own directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from user-supplied flags
	if err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", path, err)
	}

	base := filepath.Dir(path)
	if m.SourceDir != "" && !filepath.IsAbs(m.SourceDir) {
		m.SourceDir = filepath.Join(base, m.SourceDir)
	}
	if m.OutDir != "" && !filepath.IsAbs(m.OutDir) {
		m.OutDir = filepath.Join(base, m.OutDir)
	}
	return &m, nil
}

// Apply merges the manifest into the config.
// Directories already set on the config, from flags, take precedence.
func (m *Manifest) Apply(c *Config) {
	if c.SourceDir == "" {
		c.SourceDir = m.SourceDir
	}
	if c.OutDir == "" {
		c.OutDir = m.OutDir
	}
	c.Tasks = append(c.Tasks, m.Files...)
}
