package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const ownerKeyLen = 32

// OwnerKey maps a user id to a stable, path-safe storage prefix. Guest ids get
// their own namespace so claimed guest archives are easy to spot.
func OwnerKey(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	digest := hex.EncodeToString(sum[:])[:ownerKeyLen]
	if strings.HasPrefix(userID, "guest:") {
		return "guest-" + digest
	}
	return "user-" + digest
}
