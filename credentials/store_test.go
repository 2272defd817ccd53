package credentials_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/classroom-portal/credentials"
	"github.com/stretchr/testify/require"
)

var (
	testPair = credentials.Pair{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 900}
	testUser = &credentials.Identity{ID: "user-1", CivilID: "290010112345", FullName: "Noura Al-Sabah", Email: "noura@example.com"}
)

// storeFactories runs every test against each Store implementation
func storeFactories(t *testing.T) map[string]func() credentials.Store {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() credentials.Store{
		"in-memory": func() credentials.Store { return credentials.NewInMemoryStore() },
		"file":      func() credentials.Store { return credentials.NewFileStore(filepath.Join(dir, "profile", "credentials.json")) },
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()

			_, ok := s.Load()
			require.False(t, ok, "fresh store should be empty")

			s.Save(testPair, testUser)
			record, ok := s.Load()
			require.True(t, ok)
			require.Equal(t, testPair, record.Pair)
			require.Equal(t, testUser, record.Identity)

			s.Clear()
			_, ok = s.Load()
			require.False(t, ok)
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Clear()
			s.Clear()
			_, ok := s.Load()
			require.False(t, ok)
		})
	}
}

func TestStore_IncompletePairIsNeverPersisted(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Save(testPair, testUser)

			s.Save(credentials.Pair{AccessToken: "only-access"}, nil)

			record, ok := s.Load()
			require.True(t, ok)
			require.Equal(t, testPair, record.Pair, "previous pair must survive an incomplete save")
		})
	}
}

func TestStore_CompareAndSave(t *testing.T) {
	rotated := credentials.Pair{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900}

	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.False(t, s.CompareAndSave(testPair.RefreshToken, rotated, testUser), "empty store never matches")
			_, ok := s.Load()
			require.False(t, ok)

			s.Save(testPair, testUser)
			require.False(t, s.CompareAndSave("refresh-other", rotated, testUser))
			record, _ := s.Load()
			require.Equal(t, testPair, record.Pair)

			require.True(t, s.CompareAndSave(testPair.RefreshToken, rotated, testUser))
			record, _ = s.Load()
			require.Equal(t, rotated, record.Pair)
			require.Equal(t, testUser.ID, record.Identity.ID)
		})
	}
}

func TestStore_CompareAndClear(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			require.True(t, s.CompareAndClear(""), "empty matches empty")

			s.Save(testPair, testUser)
			require.False(t, s.CompareAndClear(""))
			require.False(t, s.CompareAndClear("refresh-other"))
			_, ok := s.Load()
			require.True(t, ok, "a newer record is left in place")

			require.True(t, s.CompareAndClear(testPair.RefreshToken))
			_, ok = s.Load()
			require.False(t, ok)
		})
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s := credentials.NewInMemoryStore()
	s.Save(testPair, testUser)

	record, _ := s.Load()
	record.Identity.FullName = "changed"

	again, _ := s.Load()
	require.Equal(t, "Noura Al-Sabah", again.Identity.FullName)
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	first := credentials.NewFileStore(path)
	first.Save(testPair, testUser)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := credentials.NewFileStore(path)
	record, ok := second.Load()
	require.True(t, ok)
	require.Equal(t, testPair, record.Pair)
	require.Equal(t, testUser.ID, record.Identity.ID)

	second.Clear()
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	third := credentials.NewFileStore(path)
	_, ok = third.Load()
	require.False(t, ok)
}

func TestFileStore_CorruptFileIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := credentials.NewFileStore(path)
	_, ok := s.Load()
	require.False(t, ok)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "corrupt file should be removed")
}

func TestFileStore_UnreadableFileIsKept(t *testing.T) {
	// A directory at the credential path fails to read without being corrupt.
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.Mkdir(path, 0o700))

	s := credentials.NewFileStore(path)
	_, ok := s.Load()
	require.False(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err, "unreadable path must not be removed")
	require.True(t, info.IsDir())
}

func TestFileStore_CompareAndSaveSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	credentials.NewFileStore(path).Save(testPair, testUser)

	rotated := credentials.Pair{AccessToken: "access-2", RefreshToken: "refresh-2"}
	require.True(t, credentials.NewFileStore(path).CompareAndSave(testPair.RefreshToken, rotated, testUser))

	record, ok := credentials.NewFileStore(path).Load()
	require.True(t, ok)
	require.Equal(t, rotated, record.Pair)
}

func TestPair_Token(t *testing.T) {
	issued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	token := testPair.Token(issued)

	require.Equal(t, "access-1", token.AccessToken)
	require.Equal(t, "refresh-1", token.RefreshToken)
	require.Equal(t, "Bearer", token.Type())
	require.Equal(t, issued.Add(15*time.Minute), token.Expiry)

	noExpiry := credentials.Pair{AccessToken: "a", RefreshToken: "r"}.Token(issued)
	require.True(t, noExpiry.Expiry.IsZero())
}
