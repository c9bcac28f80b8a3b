package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Fingerprint is the SHA-256 digest of a normalized row. It is comparable and
// used directly as a map key.
//
// Two rows share a fingerprint when their normalized values are equal
// position by position. A SHA-256 collision between distinct rows is not
// handled; at spreadsheet scale the probability is negligible.
type Fingerprint [sha256.Size]byte

// String returns the hex form of the digest.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintRow hashes an ordered sequence of normalized values.
//
// Each value is written as a uvarint byte length followed by its bytes, so
// ["ab", "c"] and ["a", "bc"] hash differently. The result depends only on
// the values, never on process state.
func FingerprintRow(values []string) Fingerprint {
	h := sha256.New()
	var lenBuf [binary.MaxVarintLen64]byte

	for _, v := range values {
		n := binary.PutUvarint(lenBuf[:], uint64(len(v)))
		h.Write(lenBuf[:n])
		h.Write([]byte(v))
	}

	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}

// FingerprintTable returns one fingerprint per row, index-aligned with n.
func FingerprintTable(n NormalizedTable) []Fingerprint {
	out := make([]Fingerprint, len(n.Rows))
	for i, row := range n.Rows {
		out[i] = FingerprintRow(row)
	}
	return out
}
