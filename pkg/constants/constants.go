package constants

import "time"

// Generation defaults
const (
	DefaultStudentCount  = 100
	DefaultEpsilonBudget = 1.0
	DefaultDeltaPrivacy  = 1e-5
	DefaultKAnonymity    = 3

	DefaultNoiseLevelStd   = 0.05
	DefaultMissingDataRate = 0.02
	DefaultOutlierRate     = 0.03
)

// Budget split across pipeline phases. Fixed up front so the spend pattern
// is identical for every run regardless of scheduling.
const (
	BudgetShareSampling   = 0.40
	BudgetShareSimulation = 0.40
	BudgetShareValidation = 0.20
)

// Privacy operation identifiers used by the budget ledger
const (
	OpProfileAttributeNoise = "profile_attribute_noise"
	OpSessionAccuracyNoise  = "session_accuracy_noise"
	OpSessionTimingNoise    = "session_timing_noise"
	OpAggregateRelease      = "aggregate_release"
)

// Quality thresholds
const (
	// ForgettingCurveCorrelationThreshold is the minimum mean Pearson
	// correlation between predicted retention and realized accuracy required
	// to pass psychology compliance when consistency enforcement is on.
	ForgettingCurveCorrelationThreshold = 0.30

	// FidelityTolerancePerStudent scales the per-persona proportion tolerance:
	// tolerance = FidelityToleranceBase + FidelityTolerancePerStudent/sqrt(n).
	FidelityToleranceBase       = 0.01
	FidelityTolerancePerStudent = 0.5

	// RiskCeilingMargin is added to 1/k to form the documented acceptable
	// ceiling on empirical attack success. Smaller k means a higher ceiling,
	// stated here rather than implied.
	RiskCeilingMargin = 0.10
)

// Behavioral simulation parameters
const (
	// EngagementAutocorrelation is the AR(1) coefficient for session
	// engagement persistence when temporal correlations are enabled.
	EngagementAutocorrelation = 0.7

	// MemoryStabilityBaseDays is the initial forgetting-curve stability S,
	// in days, before spaced-repetition adjustments.
	MemoryStabilityBaseDays = 2.0

	// SM-2 style interval bounds
	MinReviewInterval = 1
	MaxReviewInterval = 60

	MinEasinessFactor     = 1.3
	InitialEasinessFactor = 2.5

	MinQuestionsPerSession = 3
	MaxQuestionsPerSession = 40

	MinSessionDuration = 5 * time.Minute
	MaxSessionDuration = 3 * time.Hour
)

// Attack simulation defaults
const (
	DefaultAttackTrials = 50

	// AuxiliaryPopulationFactor sizes the synthetic auxiliary population used
	// by the demographic overlay attack, relative to the dataset size.
	AuxiliaryPopulationFactor = 4
)

// ConceptPool is the catalogue of study concepts sessions draw from.
var ConceptPool = []string{
	"fractions",
	"linear_equations",
	"quadratic_functions",
	"geometry_proofs",
	"probability",
	"statistics_basics",
	"reading_comprehension",
	"essay_structure",
	"grammar_rules",
	"vocabulary_building",
	"cell_biology",
	"chemical_reactions",
	"newtonian_mechanics",
	"world_history",
	"map_skills",
}
