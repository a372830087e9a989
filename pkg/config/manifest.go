package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// pluginManifest is the YAML document a plugin drops into the manifest
// directory to contribute navigation entries. menu_items stays untyped on
// purpose: shape validation is the menu package's job and a malformed
// manifest must degrade to a silent no-render, not a load failure.
type pluginManifest struct {
	Plugin    string `yaml:"plugin"`
	MenuItems any    `yaml:"menu_items"`
}

// LoadManifests parses every manifest and merges their menu_items, in file
// name order, into one raw sequence. A manifest whose menu_items is not a
// sequence contributes its raw value as a single element, which later fails
// element validation and silences the whole menu; malformed plugin input
// must never partially render.
func LoadManifests(paths []string) (any, error) {
	merged := []any{}

	for _, path := range paths {
		//nolint:gosec // Manifest paths come from operator configuration
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}

		var doc pluginManifest
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}

		switch items := doc.MenuItems.(type) {
		case nil:
			// Manifest contributes no menu entries.
		case []any:
			merged = append(merged, items...)
		default:
			merged = append(merged, items)
		}
	}

	return merged, nil
}

// ManifestPaths resolves the configured manifest location to the ordered
// list of files to load. A directory contributes its *.yaml and *.yml
// entries sorted by name so merge order is deterministic.
func ManifestPaths(cfg MenuConfig) ([]string, error) {
	if cfg.ManifestFile != "" {
		return []string{cfg.ManifestFile}, nil
	}
	if cfg.ManifestDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(cfg.ManifestDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest dir %s: %w", cfg.ManifestDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(cfg.ManifestDir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
