// Package id generates unique identifiers for transcription jobs.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const prefix = "job"

// Generate creates a new unique job ID of the form
// job-<unix-timestamp>-<random-hex>, e.g. job-1756600000-3f9a1c04e2b7.
// The timestamp keeps IDs roughly sortable by creation time.
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("%s-%d", prefix, timestamp)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, timestamp, hex.EncodeToString(random))
}
