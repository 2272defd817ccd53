package credentials

import "time"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Store persists a credential pair and the cached identity as one unit.
// Implementations never expose a partially written record.
type Store interface {
	// Save overwrites the pair and identity. Incomplete pairs are ignored.
	Save(pair Pair, identity *Identity)
	// Load returns false when nothing is stored.
	Load() (Record, bool)
	// Clear removes everything. Clearing an empty store is a no-op.
	Clear()
	// CompareAndSave saves only while the stored refresh credential is still
	// expected. It reports whether the record was written.
	CompareAndSave(expected string, pair Pair, identity *Identity) bool
	// CompareAndClear clears only while the stored refresh credential is still
	// expected. An empty expected matches an empty store.
	CompareAndClear(expected string) bool
}

func refreshOf(record *Record) string {
	if record == nil {
		return ""
	}
	return record.Pair.RefreshToken
}
