package testdb

import (
	"context"
	"fmt"

	"github.com/kuitang/noteflow/internal/crypto"
	"github.com/kuitang/noteflow/internal/db"
)

// testMasterKey is a fixed master key so in-memory databases exercise the
// SQLCipher code path the same way an encrypted file does.
var testMasterKey = []byte("noteflow-test-master-key-32bytes")

// NewInMemory creates an isolated, encrypted, fully migrated in-memory database.
// Each call returns a fresh database; nothing is shared between calls.
func NewInMemory() (*db.DB, error) {
	key := crypto.DeriveDatabaseKey(testMasterKey, "test", 1)
	d, err := db.Open(context.Background(), db.MemoryPath, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return d, nil
}

// MustNewInMemory is NewInMemory for tests; it fails the test on error and
// closes the database when the test ends.
func MustNewInMemory(t interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}) *db.DB {
	t.Helper()
	d, err := NewInMemory()
	if err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}
