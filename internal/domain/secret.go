package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/sha3"
)

// SecretRevelation is append-only per order, spec §3.
type SecretRevelation struct {
	OrderID   string
	Preimage  [32]byte
	Hashlock  [32]byte
	Chain     Chain
	TxHash    string
	Revealer  string
	Timestamp time.Time
}

// Hash computes H(preimage) under the given algorithm. sha256 is
// canonical per spec §9; keccak256 is recognized for orders that
// explicitly opt into it (see SPEC_FULL.md Open Question decision) but
// is never produced by Generate.
func Hash(algo HashAlgorithm, preimage [32]byte) [32]byte {
	switch algo {
	case HashKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(preimage[:])
		var out [32]byte
		copy(out[:], h.Sum(nil))
		return out
	default:
		return sha256.Sum256(preimage[:])
	}
}

// VerifyPreimage reports whether preimage hashes (under algo) to
// hashlock, using a constant-time comparison as spec §4.4 prefers.
func VerifyPreimage(algo HashAlgorithm, preimage, hashlock [32]byte) bool {
	computed := Hash(algo, preimage)
	return subtle.ConstantTimeCompare(computed[:], hashlock[:]) == 1
}
