package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStream = "stochos/stream/v1"
	DomainScene  = "stochos/scene/v1"
	DomainSeed   = "stochos/seed/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// StreamHash computes a content hash over an ordered event stream.
// Two renders of the same scene with the same seed MUST produce the same hash.
func StreamHash(events []Event) (string, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = ev.CanonicalMap()
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("StreamHash: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashWithDomain(DomainStream, canonical)), nil
}

// SceneHash computes a content hash over canonical scene bytes.
func SceneHash(canonical []byte) string {
	return hex.EncodeToString(hashWithDomain(DomainScene, canonical))
}

// SeedFor derives the random seed of one generator from the scene seed and
// the generator name.
//
// Seeds are keyed by name rather than position so adding or removing a
// generator leaves the streams of its siblings unchanged.
func SeedFor(sceneSeed uint64, generator string) uint64 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], sceneSeed)
	data := append(b[:], []byte(generator)...)
	sum := hashWithDomain(DomainSeed, data)
	return binary.BigEndian.Uint64(sum[:8])
}
