package config

import (
	"fmt"
	"strings"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
}

type EnvVars struct {
	Port     string `yaml:"port" env:"PORT" env-default:"8080" env-description:"HTTP listen port"`
	AppName  string `yaml:"app_name" env:"APP_NAME" env-default:"Go Password Auth" env-description:"Name shown in the startup banner"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080" env-description:"Public base URL, used as the token issuer"`
	Env      string `yaml:"env" env:"ENV" env-default:"DEV" env-description:"Deployment environment (DEV enables console logging)"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info" env-description:"zerolog level (debug, info, warn, error)"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetBaseURL returns the base URL of the server (e.g., "https://auth.example.com")
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(e.BaseURL, "/")
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	if e.LogLevel == "" {
		return "info"
	}
	return e.LogLevel
}
