package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(normalize(m)), nil
}

// FromJSON parses JSON data into a Config. The document must be an object.
func FromJSON(data []byte) (Config, error) {
	if !gjson.ValidBytes(data) {
		return Config{}, errors.New("parse json: invalid document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Config{}, fmt.Errorf("parse json: top level is %s, not an object", doc.Type)
	}
	m, _ := doc.Value().(map[string]any)
	return New(m), nil
}

// normalize rewrites the map[any]any sections yaml produces for non-string
// keys into map[string]any so dotted lookups reach them.
func normalize(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalize(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = normalizeValue(e)
		}
		return out
	case []any:
		for i, e := range val {
			val[i] = normalizeValue(e)
		}
		return val
	}
	return v
}
