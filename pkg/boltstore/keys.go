package boltstore

import (
	"encoding/binary"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta     = []byte("meta")
	bucketSnapshot = []byte("snapshot")
	bucketAccounts = []byte("accounts")
)

// Meta key constants.
var (
	keyVersion = []byte("version")
	keySavedAt = []byte("saved_at")
	keySaves   = []byte("saves")
)

// intToKey converts an int to an 8-byte big-endian key.
func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
