package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// fileValues is the YAML overlay. Keys use the same names as the
// environment variables so a deployment can move settings between the two.
type fileValues map[string]any

func LoadFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values fileValues
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			out[key] = v
		case int:
			out[key] = strconv.Itoa(v)
		case bool:
			out[key] = strconv.FormatBool(v)
		case []any:
			list := ""
			for i, item := range v {
				if i > 0 {
					list += ","
				}
				list += fmt.Sprint(item)
			}
			out[key] = list
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func lookupWithFile(path string) func(string) string {
	if path == "" {
		return os.Getenv
	}
	values, err := LoadFile(path)
	if err != nil {
		return os.Getenv
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v
		}
		return values[key]
	}
}
