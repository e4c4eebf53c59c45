package symbol

import (
	"crypto/sha256"
	"encoding/hex"
)

// ID computes the stable, content-derived symbol identity:
// hash16(qualified_name || signature || language), truncated to 16 hex
// characters (64 bits) as required by the identity invariant.
func ID(qualifiedName, signature, language string) string {
	h := sha256.New()
	h.Write([]byte(qualifiedName))
	h.Write([]byte{0})
	h.Write([]byte(signature))
	h.Write([]byte{0})
	h.Write([]byte(language))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

// ContentHash computes a 64-bit hex digest of verbatim symbol content,
// used to detect whether a symbol's body changed across re-extraction.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])[:16]
}

// EdgeID assigns a deterministic id to an AST-inferred edge lacking one
// from its origin. Per the open-question resolution: hash(source_id ||
// target_id || type || origin).
func EdgeID(sourceID, targetID string, edgeType EdgeType, origin Origin) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(targetID))
	h.Write([]byte{0})
	h.Write([]byte(edgeType))
	h.Write([]byte{0})
	h.Write([]byte(origin))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}
