package models

import "time"

// Demographics carries the coarse demographic attributes of a synthetic
// student. Both fields are quasi-identifiers for k-anonymity purposes.
type Demographics struct {
	AgeGroup      AgeGroup      `json:"age_group"`
	AcademicLevel AcademicLevel `json:"academic_level"`
}

// LearningVelocity describes how quickly a student acquires mastery.
type LearningVelocity struct {
	BaseRate      float64 `json:"base_rate"`      // mastery gained per successful session, in [0, 1]
	PlateauFactor float64 `json:"plateau_factor"` // diminishing-returns exponent, in [0, 1]
}

// StrugglePatterns captures per-student difficulty traits, each in [0, 1].
type StrugglePatterns struct {
	ConfusionTendency     float64 `json:"confusion_tendency"`
	FrustrationTolerance  float64 `json:"frustration_tolerance"`
	CognitiveLoadCapacity float64 `json:"cognitive_load_capacity"`
	HelpSeekingDelay      float64 `json:"help_seeking_delay"`
	AnxietySensitivity    float64 `json:"anxiety_sensitivity"`
}

// InteractionTiming describes a student's pacing characteristics.
type InteractionTiming struct {
	BaseResponseTime         time.Duration `json:"base_response_time"`
	ComplexityMultiplier     float64       `json:"complexity_multiplier"`
	PreferredSessionDuration time.Duration `json:"preferred_session_duration"`
}

// ComprehensionStyle holds modality weights. The four weights sum to 1.
type ComprehensionStyle struct {
	Visual         float64 `json:"visual"`
	Auditory       float64 `json:"auditory"`
	Kinesthetic    float64 `json:"kinesthetic"`
	ReadingWriting float64 `json:"reading_writing"`
}

// CognitiveProfile is one synthetic student's complete cognitive and
// behavioral parameterization. Profiles are created once per generation run
// and never mutated afterwards.
type CognitiveProfile struct {
	StudentID          string             `json:"student_id"`
	Persona            Persona            `json:"persona"`
	Demographics       Demographics       `json:"demographics"`
	LearningVelocity   LearningVelocity   `json:"learning_velocity"`
	MemoryRetention    float64            `json:"memory_retention"` // decay-resistance multiplier, in [0, 1]
	StrugglePatterns   StrugglePatterns   `json:"struggle_patterns"`
	InteractionTiming  InteractionTiming  `json:"interaction_timing"`
	ComprehensionStyle ComprehensionStyle `json:"comprehension_style"`
	IsOutlier          bool               `json:"is_outlier"` // drawn without domain clamping
}
