package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// values holds settings read from the optional YAML file. Keys are the lower
// case names of the matching environment variables, e.g. api_base_url.
type values map[string]string

func readFile(path string) (values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] read %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("[config Load] parse %s: %w", path, err)
	}

	v := make(values, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		v[strings.ToLower(key)] = fmt.Sprint(value)
	}
	return v, nil
}

// get resolves a setting: environment first, then the file, then defaultValue.
func (v values) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := v[strings.ToLower(envVar)]; ok && value != "" {
		return value
	}
	return defaultValue
}
