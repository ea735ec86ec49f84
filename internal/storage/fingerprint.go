package storage

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// FingerprintBytes returns the hex-encoded blake3 hash of the data. It
// content-addresses uploaded audio for chunk temp-file naming and job
// reporting.
func FingerprintBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
