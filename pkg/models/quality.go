package models

// PsychologyCompliance scores how well realized behavior tracks the
// educational-psychology models driving the simulation.
type PsychologyCompliance struct {
	// ForgettingCurveCorrelation is the mean Pearson correlation between the
	// retention predicted by the forgetting curve and realized session
	// accuracy, across students with enough sessions to correlate.
	ForgettingCurveCorrelation float64 `json:"forgetting_curve_correlation"`
	MeetsThreshold             bool    `json:"meets_threshold"`
}

// PrivacyMetrics aggregates the attack-simulation outcomes.
type PrivacyMetrics struct {
	ReidentificationRisk float64                `json:"reidentification_risk"` // overall success rate
	AttackSuccessRates   map[AttackType]float64 `json:"attack_success_rates"`
	RiskCeiling          float64                `json:"risk_ceiling"` // documented ceiling: 1/k + margin
	WithinCeiling        bool                   `json:"within_ceiling"`
}

// QualityMetrics is the diagnostic report attached to every successful run.
// It never blocks dataset return; warnings travel with the output for the
// caller to accept or reject.
type QualityMetrics struct {
	DistributionFidelity float64              `json:"distribution_fidelity"` // in [0, 1], 1 = exact match
	PersonaDeviation     map[Persona]float64  `json:"persona_deviation"`     // realized minus requested fraction
	PsychologyCompliance PsychologyCompliance `json:"psychology_compliance"`
	PrivacyMetrics       PrivacyMetrics       `json:"privacy_metrics"`
	SuppressedAggregates int                  `json:"suppressed_aggregates"`
	Warnings             []string             `json:"warnings,omitempty"`
}

// Dataset is the complete output of one generation run.
type Dataset struct {
	Profiles       []CognitiveProfile    `json:"profiles"`
	Sessions       []LearningSession     `json:"sessions"`
	PrivacyAttacks []PrivacyAttackRecord `json:"privacy_attacks"`
	QualityMetrics QualityMetrics        `json:"quality_metrics"`
	Seed           int64                 `json:"seed"`
	Reproducible   bool                  `json:"reproducible"` // false when the seed came from entropy
}
