package testutil

import (
	"crypto/sha256"
	"encoding/hex"

	"msync/internal/bt"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ChecksumOf returns the checksum fingerprint of data.
func ChecksumOf(data []byte) bt.Fingerprint {
	return bt.Fingerprint{Kind: bt.KindChecksum, Value: SHA256Hex(data)}
}
