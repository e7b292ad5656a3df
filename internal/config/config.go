package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnvVar = "CONFIG_PATH"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars  `yaml:",inline"`
	Cors     `yaml:",inline"`
	OAuth    `yaml:",inline"`
	Security `yaml:",inline"`
	Storage  `yaml:",inline"`
}

// New loads the configuration from the YAML file named by CONFIG_PATH (if set)
// with environment variables layered on top.
func New() (Config, error) {
	return Load(os.Getenv(configPathEnvVar))
}

// Load reads the config file at path, or only the environment when path is empty.
func Load(path string) (Config, error) {
	var c mainConfig
	if path != "" {
		if err := cleanenv.ReadConfig(path, &c); err != nil {
			return nil, fmt.Errorf("[config Load] failed to read %q: %w", path, err)
		}
		return &c, nil
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config Load] failed to read environment: %w", err)
	}
	return &c, nil
}

// Usage returns the description of every supported environment variable.
func Usage() string {
	var c mainConfig
	usage, err := cleanenv.GetDescription(&c, nil)
	if err != nil {
		return err.Error()
	}
	return usage
}
