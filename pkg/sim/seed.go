package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/aretw0/trialkit/pkg/domain"
)

// NewRNG derives the session's reproducible generator from its seed.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// StableHash hashes parts joined by "|" and returns the first 8 digest bytes
// reduced to 32 bits.
func StableHash(parts ...any) uint32 {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprint(h, p)
		h.Write([]byte("|"))
	}
	sum := h.Sum(nil)
	return uint32(binary.BigEndian.Uint64(sum[:8]) % (1 << 32))
}

// TrialSeed derives a per-trial, per-phase seed that is stable across runs.
func TrialSeed(sessionID string, trialID any, phase string, base int64) uint32 {
	return StableHash(sessionID, trialID, phase, base)
}

// DefaultSessionID is "<mode>-<participant>-seed<seed>".
func DefaultSessionID(mode domain.Mode, participant string, seed int64) string {
	if participant == "" {
		participant = DefaultParticipant
	}
	return fmt.Sprintf("%s-%s-seed%d", mode, participant, seed)
}

// DefaultParticipant is used when no participant id is configured.
const DefaultParticipant = "p000"
