// ABOUTME: Loads and deep-merges the base and user YAML configuration files.
// ABOUTME: Validates required sections and builds the numeric option mappings exposed to callers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mappings translate the small-integer choices accepted by the CLI and
// frontend into the string keys the rest of the system uses.
type Mappings struct {
	Styles      map[int]string
	Resolutions map[int]string
	Positions   map[int]string
	Voices      map[int]string
}

// Config is the merged configuration for one process.
// Merged holds the full tree (user.yaml wins over config.yaml);
// Hash is the drift fingerprint computed from it at load time.
type Config struct {
	ProjectRoot string
	ConfigPath  string
	UserPath    string
	Base        map[string]any
	User        map[string]any
	Merged      map[string]any
	Mappings    Mappings
	Hash        string
}

// Load reads config.yaml and user.yaml from root, merges them, validates
// required sections, and computes the config hash. A missing user.yaml is
// fine; a missing config.yaml yields an empty base.
func Load(root string) (*Config, error) {
	configPath := filepath.Join(root, "config.yaml")
	userPath := filepath.Join(root, "user.yaml")

	base, err := loadYAML(configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	user, err := loadYAML(userPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", userPath, err)
	}

	merged := DeepMerge(base, user)

	for _, section := range []string{"visual_styles", "camera_movements", "prompt_templates"} {
		if merged[section] == nil {
			return nil, fmt.Errorf("config missing required section %q", section)
		}
	}

	return &Config{
		ProjectRoot: root,
		ConfigPath:  configPath,
		UserPath:    userPath,
		Base:        base,
		User:        user,
		Merged:      merged,
		Mappings:    buildMappings(merged),
		Hash:        Hash(merged),
	}, nil
}

// loadYAML reads a YAML file into a map. Missing files return an empty map.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// DeepMerge returns base overlaid with override. Nested maps merge
// recursively; any other value in override replaces the base value.
func DeepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := result[k].(map[string]any); ok {
				result[k] = DeepMerge(existing, sub)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// buildMappings constructs the numeric-choice maps. Style, resolution, and
// position maps are fixed product catalogs; the voice map comes from the
// audio.voices config section.
func buildMappings(merged map[string]any) Mappings {
	voices := map[int]string{}
	if audio, ok := merged["audio"].(map[string]any); ok {
		if vs, ok := audio["voices"].(map[string]any); ok {
			for key, raw := range vs {
				entry, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				name, _ := entry["name"].(string)
				if name == "" {
					continue
				}
				var n int
				if _, err := fmt.Sscanf(key, "%d", &n); err == nil {
					voices[n] = name
				}
			}
		}
	}

	return Mappings{
		Styles: map[int]string{
			1:  "cartoon_adventure",
			2:  "luxury_fashion",
			3:  "ink_xianxia",
			4:  "realistic_3d",
			5:  "cinematic",
			6:  "technology",
			7:  "cyberpunk",
			8:  "space_exploration",
			9:  "outdoor_adventure",
			10: "magical_fantasy",
		},
		Resolutions: map[int]string{1: "480p", 2: "720p", 3: "1080p"},
		Positions:   map[int]string{1: "bottom", 2: "center", 3: "top"},
		Voices:      voices,
	}
}

// Section returns the named top-level section as a map, or an empty map when
// absent or not a mapping.
func (c *Config) Section(name string) map[string]any {
	if m, ok := c.Merged[name].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// Lookup walks a dot-separated path through the merged tree.
// Returns nil when any segment is missing or not a mapping.
func (c *Config) Lookup(path string) any {
	var cur any = c.Merged
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// StringAt returns the string at a dot-separated path, or def when missing.
func (c *Config) StringAt(path, def string) string {
	if s, ok := c.Lookup(path).(string); ok && s != "" {
		return s
	}
	return def
}

// IntAt returns the integer at a dot-separated path, or def when missing.
// YAML integers decode as int; floats are truncated.
func (c *Config) IntAt(path string, def int) int {
	switch v := c.Lookup(path).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
