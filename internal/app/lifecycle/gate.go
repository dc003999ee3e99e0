package lifecycle

import "github.com/timebank-network/timebank/internal/domain"

// ─── Verification Gate ──────────────────────────────────────────────────────
// The engine depends only on this interface, not on photo-handling
// mechanics, so the policy can later grow into image-similarity or
// moderation checks without touching the state machine.

// Gate decides whether submitted evidence permits task completion.
type Gate interface {
	Evaluate(t domain.Task) domain.VerificationResult
}

// PhotoGate is the default policy: both photo slots must be populated.
type PhotoGate struct{}

// Evaluate checks the before/after photo slots.
func (PhotoGate) Evaluate(t domain.Task) domain.VerificationResult {
	if !t.HasEvidence() {
		return domain.VerificationResult{
			Valid:  false,
			Reason: "before and after photos are both required",
		}
	}
	return domain.VerificationResult{
		Valid:      true,
		Confidence: 95,
		Reason:     "both evidence photos present",
	}
}
