// Package crypto derives the SQLCipher key for the local note database.
// The master key is a 32-byte secret supplied as hex; the database key is
// derived from it with HKDF-SHA256 so the raw master key never reaches SQLite.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the size of the decoded master key in bytes (256 bits)
	MasterKeySize = 32

	// DatabaseKeySize is the size of a derived database key in bytes (256 bits)
	DatabaseKeySize = 32
)

// ParseMasterKey decodes a 64-character hex master key.
func ParseMasterKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if len(hexKey) != MasterKeySize*2 {
		return nil, fmt.Errorf("master key must be %d hex characters, got %d", MasterKeySize*2, len(hexKey))
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	return key, nil
}

// DeriveDatabaseKey derives the SQLCipher key for a database file.
// info = "noteflow:db:" + name + ":v" + version
func DeriveDatabaseKey(masterKey []byte, name string, version int) []byte {
	info := fmt.Sprintf("noteflow:db:%s:v%d", name, version)
	hkdfReader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, DatabaseKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// HKDF cannot run out of output for 32 bytes of SHA-256
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}
