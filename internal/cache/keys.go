package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Key namespace per operation. The readable operation name survives in
// the key for debugging; everything viewer- and session-specific is
// folded into the digest.
const (
	opDetail  = "detail"
	opSummary = "summary"
)

// AnonViewerKey is the fingerprint component used when no viewer identity
// is present. It must never collide with a real viewer id, so cached
// payloads for anonymous callers are isolated from every viewer's.
const AnonViewerKey = "anon"

// Fingerprint hashes the visibility-relevant inputs of a response into a
// fixed-width digest. SHA-256 keeps adversarial collision crafting off
// the table; accidental collisions are statistically irrelevant at any
// plausible deployment size.
func Fingerprint(op string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(op))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// DetailKey is the cache key for a session detail response. The viewer
// identity (or AnonViewerKey) and the force-reveal flag are part of the
// fingerprint: a full payload must never be reachable under another
// viewer's key or under the plain anonymous key.
func DetailKey(sessionID uuid.UUID, viewerKey string, forced bool) string {
	f := "0"
	if forced {
		f = "1"
	}
	return Fingerprint(opDetail, sessionID.String(), viewerKey, f)
}

// SummaryKey is the cache key for a batch summary response. Input order
// is part of the fingerprint because the response preserves it.
func SummaryKey(sessionIDs []uuid.UUID, viewerKey string) string {
	parts := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		parts = append(parts, id.String())
	}
	parts = append(parts, viewerKey)
	return Fingerprint(opSummary, parts...)
}

// DetailKeysFor returns every detail-key variant for a (session, viewer)
// pair, for eviction after the pair's entry state changes.
func DetailKeysFor(sessionID uuid.UUID, viewerKey string) []string {
	return []string{
		DetailKey(sessionID, viewerKey, false),
		DetailKey(sessionID, viewerKey, true),
	}
}
