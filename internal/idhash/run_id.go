// Package idhash computes deterministic run identifiers.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"flatcoin-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id.
// Formula: base58(SHA256(scenario|seed|blocks|configFingerprint)[:16]).
// The same inputs always map to the same ID, so re-running a cell of a
// sweep overwrites nothing and duplicates are detectable at the store.
func ComputeRunID(scenario domain.ScenarioID, seed uint64, blocks int, configFingerprint string) string {
	data := fmt.Sprintf("%s|%d|%d|%s", scenario.Name(), seed, blocks, configFingerprint)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}

// Fingerprint hashes an opaque config serialization into a short stable
// token suitable for ComputeRunID.
func Fingerprint(serialized []byte) string {
	hash := sha256.Sum256(serialized)
	return base58.Encode(hash[:8])
}
