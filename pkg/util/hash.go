package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// HashCrimeGroups returns a content hash of the groups, used as a memoization key.
// Two inputs with equal values hash equally regardless of slice identity.
func HashCrimeGroups(groups []model.CrimeGroup) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, g := range groups {
		// Encoding a struct of plain values cannot fail.
		_ = enc.Encode(g)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashString returns the SHA-256 hash of input exactly as given.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
