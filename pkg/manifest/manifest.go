// Package manifest reads ESP-IDF component manifests (idf_component.yml).
package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dependency is one entry under the manifest's dependencies key.
type Dependency struct {
	Name    string
	Version string
}

// Manifest is the subset of idf_component.yml espboot inspects.
type Manifest struct {
	Version      string
	Dependencies []Dependency
}

type document struct {
	Version      string               `yaml:"version"`
	Dependencies map[string]yaml.Node `yaml:"dependencies"`
}

type dependencyDetail struct {
	Version string `yaml:"version"`
}

// Load parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes manifest bytes. Dependencies may be a bare version string
// or a mapping with a version key.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	m := &Manifest{Version: doc.Version}
	for name, node := range doc.Dependencies {
		dep := Dependency{Name: name}
		switch node.Kind {
		case yaml.ScalarNode:
			dep.Version = node.Value
		case yaml.MappingNode:
			var detail dependencyDetail
			if err := node.Decode(&detail); err != nil {
				return nil, fmt.Errorf("dependency %s: %w", name, err)
			}
			dep.Version = detail.Version
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	sort.Slice(m.Dependencies, func(i, j int) bool {
		return m.Dependencies[i].Name < m.Dependencies[j].Name
	})
	return m, nil
}

// Lookup finds a dependency by name. The registry treats a missing
// namespace as "espressif", so "espressif/foo" matches "foo".
func (m *Manifest) Lookup(name string) (Dependency, bool) {
	want := normalizeName(name)
	for _, dep := range m.Dependencies {
		if normalizeName(dep.Name) == want {
			return dep, true
		}
	}
	return Dependency{}, false
}

// HasDependency reports whether name is declared.
func (m *Manifest) HasDependency(name string) bool {
	_, ok := m.Lookup(name)
	return ok
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "espressif/")
}
