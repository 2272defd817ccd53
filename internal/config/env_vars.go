package config

import (
	"os"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envNameVar     = "ENV"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct {
	v values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.get(portEnvVar, "3000")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.get(appNameVar, "Classroom Portal")
}

func (e EnvVars) GetEnv() string {
	return e.v.get(envNameVar, "DEV")
}

func (e EnvVars) GetLogLevel() string {
	return e.v.get(logLevelEnvVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
