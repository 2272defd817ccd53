package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/internal/fakeapi"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testFixture struct {
	api            *fakeapi.API
	credentialFile string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	api := fakeapi.New(fakeapi.Options{BcryptCost: bcrypt.MinCost})
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	_, err := api.SeedTeacher(authapi.RegisterRequest{CivilID: "290010112345", FullName: "Sara Ahmed", Password: "secret"})
	require.NoError(t, err)

	credentialFile := filepath.Join(t.TempDir(), "credentials.json")
	t.Setenv("ENV", "TEST")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("API_BASE_URL", server.URL)
	t.Setenv("CREDENTIAL_FILE", credentialFile)
	return &testFixture{api: api, credentialFile: credentialFile}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	f := setupTestFixture(t)

	out, err := execute(t, "secret\n", "login", "--civil-id", "290010112345")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Sara Ahmed")
	_, err = os.Stat(f.credentialFile)
	require.NoError(t, err)

	// A new process restores the session from the credential file.
	out, err = execute(t, "", "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Sara Ahmed")
	require.Contains(t, out, "civil id: 290010112345")
	require.Equal(t, 1, f.api.Calls(fakeapi.RouteMe))

	out, err = execute(t, "", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out")
	_, err = os.Stat(f.credentialFile)
	require.True(t, os.IsNotExist(err))

	_, err = execute(t, "", "whoami")
	require.EqualError(t, err, "not signed in")
}

func TestLogin_Rejected(t *testing.T) {
	f := setupTestFixture(t)

	_, err := execute(t, "", "login", "--civil-id", "290010112345", "--password", "wrong")
	require.EqualError(t, err, "Invalid credentials")

	_, statErr := os.Stat(f.credentialFile)
	require.True(t, os.IsNotExist(statErr))
}

func TestWhoami_RevokedRefreshClearsFile(t *testing.T) {
	f := setupTestFixture(t)
	_, err := execute(t, "", "login", "--civil-id", "290010112345", "--password", "secret")
	require.NoError(t, err)

	f.api.ExpireAccessTokens()
	f.api.RevokeRefreshTokens()

	_, err = execute(t, "", "whoami")
	require.EqualError(t, err, "not signed in")
	_, statErr := os.Stat(f.credentialFile)
	require.True(t, os.IsNotExist(statErr))
}
