package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortLen is the number of hex digits used in revisioned file names.
const ShortLen = 10

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first ShortLen hex digits of Sum(data).
func Short(data []byte) string {
	return Sum(data)[:ShortLen]
}
