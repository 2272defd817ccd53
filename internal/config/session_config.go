package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	credentialFileEnvVar = "CREDENTIAL_FILE"
	guardWaitEnvVar      = "GUARD_WAIT"
	restoreEnvVar        = "RESTORE_ON_START"
)

type Session struct {
	v values
}

var _ SessionConfig = Session{}

// GetCredentialFile defaults to a file in the user's config directory, the
// closest thing a CLI has to a browser profile.
func (s Session) GetCredentialFile() string {
	return s.v.get(credentialFileEnvVar, defaultCredentialFile())
}

func (s Session) GetGuardWait() time.Duration {
	return parseDuration(s.v.get(guardWaitEnvVar, ""), 2*time.Second)
}

func (s Session) GetRestoreOnStart() bool {
	restore, err := strconv.ParseBool(s.v.get(restoreEnvVar, "true"))
	if err != nil {
		return true
	}
	return restore
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "classroom-portal", "credentials.json")
}
