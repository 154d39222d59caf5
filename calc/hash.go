package calc

import (
	"crypto/sha1"
	"encoding/hex"
)

// Hash is a stable hex digest naming a future's identity, or a
// structural path for an Indexor.
type Hash string

// hashText produces the SHA-1 hex digest of data. SHA-1 is used purely
// for content addressing here, not for any security property, so its
// known cryptographic weaknesses are irrelevant.
func hashText(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashText exposes the digest to callers outside the package (rule
// bodies that want to derive their own content hashes, for instance).
func HashText(s string) Hash {
	return hashText([]byte(s))
}
