package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeQuestion folds a natural-language question into its cache-identity
// form: lowercased with surrounding whitespace trimmed.
func NormalizeQuestion(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// DeriveKey computes the primary cache key for a (question, database, schema
// version) triple. Unlike the schema fingerprint this is a full-length digest:
// the key addresses a large, long-lived store and must not collide.
func DeriveKey(question, database, schemaVersion string) string {
	composite := NormalizeQuestion(question) + "|" + database + "|" + schemaVersion
	digest := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(digest[:])
}
