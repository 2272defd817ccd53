package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	APIConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// APIConfig locates the remote classroom API.
type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetLoginPath() string
	GetRegisterPath() string
	GetRefreshPath() string
	GetIdentityPath() string
	GetLogoutPath() string
}

// SessionConfig controls where credentials live and how the route guard waits.
type SessionConfig interface {
	GetCredentialFile() string
	GetGuardWait() time.Duration
	GetRestoreOnStart() bool
}

type mainConfig struct {
	EnvVars
	Cors
	API
	Session
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(values{})
}

// Load returns a Config backed by environment variables, falling back to the
// YAML file at path. An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return newMainConfig(v), nil
}

func newMainConfig(v values) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{v},
		Cors:    Cors{v},
		API:     API{v},
		Session: Session{v},
	}
}
