package serialization

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeChecksum returns the hex SHA-256 of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares the checksum of data against stored.
// An empty stored checksum is accepted: files written by other tools
// carry none.
func ValidateChecksum(data []byte, stored string) error {
	if stored == "" {
		return nil
	}
	if ComputeChecksum(data) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
