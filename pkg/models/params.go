package models

import "time"

// TimeRange bounds the simulated study period.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span returns the length of the range.
func (r TimeRange) Span() time.Duration {
	return r.End.Sub(r.Start)
}

// PrivacyParams configures the differential-privacy budget and the
// k-anonymity floor for released aggregates.
type PrivacyParams struct {
	EpsilonBudget float64 `json:"epsilon_budget"` // > 0
	DeltaPrivacy  float64 `json:"delta_privacy"`  // in (0, 1)
	KAnonymity    int     `json:"k_anonymity"`    // >= 2
}

// QualityParams configures deliberate imperfection injection.
type QualityParams struct {
	NoiseLevelStd   float64 `json:"noise_level_std"`   // >= 0
	MissingDataRate float64 `json:"missing_data_rate"` // in [0, 1]
	OutlierRate     float64 `json:"outlier_rate"`      // in [0, 1]
}

// RealismConstraints toggles the educational-psychology realism features.
type RealismConstraints struct {
	EnforcePsychologicalConsistency  bool `json:"enforce_psychological_consistency"`
	ApplyEducationalResearchPatterns bool `json:"apply_educational_research_patterns"`
	IncludeIndividualVariability     bool `json:"include_individual_variability"`
	GenerateTemporalCorrelations     bool `json:"generate_temporal_correlations"`
}

// GenerationParams is the single structured input of the generator.
//
// PersonaDistribution is optional; when nil the built-in default mix applies.
// Seed is optional; when nil a seed is drawn from entropy and the run is not
// reproducible.
type GenerationParams struct {
	StudentCount        int                 `json:"student_count"`
	PersonaDistribution map[Persona]float64 `json:"persona_distribution,omitempty"`
	TimeRange           TimeRange           `json:"time_range"`
	PrivacyParams       PrivacyParams       `json:"privacy_params"`
	QualityParams       QualityParams       `json:"quality_params"`
	RealismConstraints  RealismConstraints  `json:"realism_constraints"`
	Seed                *int64              `json:"seed,omitempty"`
}
