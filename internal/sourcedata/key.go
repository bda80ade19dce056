// Package sourcedata decides whether a message needs external (web-search)
// facts, and keeps per-chat fetched facts cached under a normalized query
// signature.
package sourcedata

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// CacheKey identifies one cached external-data lookup. Signature is stable
// across trivial rephrasings (case, punctuation, spacing).
type CacheKey struct {
	QueryText  string
	Normalized string
	Signature  string
}

var (
	keyStripPattern = regexp.MustCompile(`[^a-z0-9\s]`)
	keySpacePattern = regexp.MustCompile(`\s+`)
)

// KeyFor builds the cache key for a query. Empty or punctuation-only queries
// collapse to the fixed "empty-query" sentinel so they still hash to a valid
// signature.
func KeyFor(queryText string) CacheKey {
	normalized := strings.ToLower(queryText)
	normalized = keyStripPattern.ReplaceAllString(normalized, " ")
	normalized = keySpacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		normalized = "empty-query"
	}

	sum := sha256.Sum256([]byte(normalized))
	return CacheKey{
		QueryText:  strings.TrimSpace(queryText),
		Normalized: normalized,
		Signature:  hex.EncodeToString(sum[:]),
	}
}
