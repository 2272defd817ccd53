package config

import (
	"strings"
	"time"
)

const (
	apiBaseURLEnvVar     = "API_BASE_URL"
	requestTimeoutEnvVar = "REQUEST_TIMEOUT"
)

type API struct {
	v values
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the remote API root without a trailing slash.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.v.get(apiBaseURLEnvVar, "http://localhost:8080/api"), "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return parseDuration(a.v.get(requestTimeoutEnvVar, ""), 30*time.Second)
}

func (API) GetLoginPath() string {
	return "/auth/login"
}

func (API) GetRegisterPath() string {
	return "/auth/register"
}

func (API) GetRefreshPath() string {
	return "/auth/refresh"
}

func (API) GetIdentityPath() string {
	return "/auth/me"
}

func (API) GetLogoutPath() string {
	return "/auth/logout"
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
