package etag

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint derives the content fingerprint of a serialized resource.
// Deterministic for a given byte sequence, so two parties holding the same
// resource state compute the same ETag.
func Fingerprint(serialized []byte) string {
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqualHex compares two hex-encoded digests without leaking
// timing. Used for bearer-credential checks.
func ConstantTimeEqualHex(aHex, bHex string) bool {
	a, err1 := hex.DecodeString(aHex)
	b, err2 := hex.DecodeString(bHex)
	if err1 != nil || err2 != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
