// Package session derives pseudo-identities for listeners and tracks
// session recency to classify new vs returning activity.
//
// A fingerprint is a salted hash of transient request metadata (client
// address + user agent). It is deterministic within one engine run, never
// reversible to PII by snapshot consumers, and never persisted. Identity is
// therefore probabilistic and short-lived: this is a session classifier,
// not a listener registry.
package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength is the length of the hex fingerprint exposed downstream.
// 16 hex chars (64 bits) keeps collision odds negligible at radio-station
// cardinality while staying compact in maps and logs.
const FingerprintLength = 16

// Fingerprinter derives client fingerprints with a configured salt.
type Fingerprinter struct {
	salt string
}

// NewFingerprinter creates a Fingerprinter. An empty salt is allowed but
// makes fingerprints stable across restarts; production deployments should
// set one.
func NewFingerprinter(salt string) *Fingerprinter {
	return &Fingerprinter{salt: salt}
}

// Derive returns the fingerprint for a client address + user agent pair.
func (f *Fingerprinter) Derive(addr, userAgent string) string {
	h := sha256.New()
	h.Write([]byte(f.salt))
	h.Write([]byte{0})
	h.Write([]byte(addr))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))

	return hex.EncodeToString(h.Sum(nil))[:FingerprintLength]
}
