package speech

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Key namespaces. Single-text and card requests hash into disjoint spaces,
// so a collision between the two request types is structurally impossible.
const (
	keyNamespaceSpeech = "speech"
	keyNamespaceCard   = "card"
)

// deriveKey computes a deterministic digest over the namespace and field
// values. Each field is length-prefixed before hashing so adjacent fields
// can never be confused regardless of their content. Same inputs always
// yield the same key; any single differing field yields a different key.
func deriveKey(namespace string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	var lenBuf [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		h.Write(lenBuf[:])
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
