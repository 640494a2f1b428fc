package bridge

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads the config file, fills missing values from environment variables, and seals it.
//
// args:
//   - filepath: config file. If empty, only environment variables are used.
//   - lookup: environment variable lookup, like os.LookupEnv. nil means no variables.
func LoadConfig(filepath string, lookup func(string) (string, bool)) (*Config, error) {
	m := &ConfigMarshall{}
	if filepath != "" {
		content, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}
		if m, err = UnmarshalMarshall(content); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		m = FromEnv(m, lookup)
	}
	return m.Seal()
}

func UnmarshalMarshall(conf []byte) (*ConfigMarshall, error) {
	out := &ConfigMarshall{}
	if err := yaml.Unmarshal(conf, out); err != nil {
		return nil, err
	}
	return out, nil
}

func Unmarshal(conf []byte) (*Config, error) {
	m, err := UnmarshalMarshall(conf)
	if err != nil {
		return nil, err
	}
	return m.Seal()
}
