package models

// AttackType identifies one of the fixed heuristic re-identification attacks.
// The set is closed; the simulator switches exhaustively over it.
type AttackType string

const (
	AttackPersonaFingerprint AttackType = "persona_fingerprint"
	AttackTemporalLinkage    AttackType = "temporal_linkage"
	AttackDemographicOverlay AttackType = "demographic_overlay"
)

// AllAttackTypes returns every attack in the fixed battery order.
func AllAttackTypes() []AttackType {
	return []AttackType{
		AttackPersonaFingerprint,
		AttackTemporalLinkage,
		AttackDemographicOverlay,
	}
}

// PrivacyAttackRecord is the outcome of one adversarial trial. These records
// are empirical best-effort estimates, not formal privacy bounds.
type PrivacyAttackRecord struct {
	AttackType      AttackType `json:"attack_type"`
	TargetStudentID string     `json:"target_student_id"`
	Success         bool       `json:"success"`
	Confidence      float64    `json:"confidence"` // in [0, 1]
}
