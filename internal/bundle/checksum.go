package bundle

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// ErrChecksumMismatch is returned when the constant weights blob does not
// hash to the checksum recorded in the bundle configuration.
var ErrChecksumMismatch = errors.New("weights checksum mismatch")

// ComputeChecksum returns the hex SHA-256 digest of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum compares the digest of data against the stored hex digest.
func ValidateChecksum(data []byte, stored string) error {
	if ComputeChecksum(data) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
