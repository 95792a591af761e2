// Package personas holds the static catalogue of behavioral archetypes and
// their attribute-distribution templates. The catalogue is immutable and
// loaded once; sampling code treats it as read-only.
package personas

import (
	"fmt"
	"time"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// NormalSpec is a truncated normal distribution template for one attribute.
// Draws outside [Min, Max] are clamped unless the profile is a deliberate
// outlier.
type NormalSpec struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// DurationSpec is a truncated normal template over a time duration.
type DurationSpec struct {
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"std_dev"`
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
}

// AttributeTemplate is one persona's full set of attribute distributions.
type AttributeTemplate struct {
	Persona models.Persona `json:"persona"`

	LearningVelocityBase NormalSpec `json:"learning_velocity_base"`
	PlateauFactor        NormalSpec `json:"plateau_factor"`
	MemoryRetention      NormalSpec `json:"memory_retention"`

	ConfusionTendency     NormalSpec `json:"confusion_tendency"`
	FrustrationTolerance  NormalSpec `json:"frustration_tolerance"`
	CognitiveLoadCapacity NormalSpec `json:"cognitive_load_capacity"`
	HelpSeekingDelay      NormalSpec `json:"help_seeking_delay"`
	AnxietySensitivity    NormalSpec `json:"anxiety_sensitivity"`

	BaseResponseTime         DurationSpec `json:"base_response_time"`
	ComplexityMultiplier     NormalSpec   `json:"complexity_multiplier"`
	PreferredSessionDuration DurationSpec `json:"preferred_session_duration"`

	// ComprehensionBias weights the Dirichlet-style draw of modality
	// preferences. Higher relative weight pulls the style toward that modality.
	ComprehensionBias models.ComprehensionStyle `json:"comprehension_bias"`

	// EngagementBaseline anchors the AR(1) engagement chain for this persona.
	EngagementBaseline NormalSpec `json:"engagement_baseline"`

	// AgeGroupWeights and AcademicLevelWeights are categorical weights over
	// the demographic buckets, in the fixed order of models.AgeGroups and
	// models.AcademicLevels.
	AgeGroupWeights      []float64 `json:"age_group_weights"`
	AcademicLevelWeights []float64 `json:"academic_level_weights"`
}

// TemplateFor resolves a persona to its attribute template. An uncatalogued
// persona is a fatal configuration error caught before sampling begins.
func TemplateFor(p models.Persona) (*AttributeTemplate, error) {
	switch p {
	case models.PersonaFastLearner:
		return fastLearnerTemplate(), nil
	case models.PersonaSteadyAchiever:
		return steadyAchieverTemplate(), nil
	case models.PersonaStrugglingStudent:
		return strugglingStudentTemplate(), nil
	case models.PersonaAnxiousStudent:
		return anxiousStudentTemplate(), nil
	case models.PersonaDisengaged:
		return disengagedTemplate(), nil
	default:
		return nil, errors.NewConfigurationError(errors.CodeUnknownPersona,
			fmt.Sprintf("persona %q is not catalogued", p))
	}
}

// DefaultDistribution is the built-in persona mix used when the request does
// not supply one.
func DefaultDistribution() map[models.Persona]float64 {
	return map[models.Persona]float64{
		models.PersonaFastLearner:       0.15,
		models.PersonaSteadyAchiever:    0.35,
		models.PersonaStrugglingStudent: 0.25,
		models.PersonaAnxiousStudent:    0.15,
		models.PersonaDisengaged:        0.10,
	}
}

func fastLearnerTemplate() *AttributeTemplate {
	return &AttributeTemplate{
		Persona:              models.PersonaFastLearner,
		LearningVelocityBase: NormalSpec{Mean: 0.80, StdDev: 0.08, Min: 0.50, Max: 1.0},
		PlateauFactor:        NormalSpec{Mean: 0.30, StdDev: 0.10, Min: 0.05, Max: 0.60},
		MemoryRetention:      NormalSpec{Mean: 0.85, StdDev: 0.07, Min: 0.55, Max: 1.0},

		ConfusionTendency:     NormalSpec{Mean: 0.15, StdDev: 0.08, Min: 0, Max: 0.5},
		FrustrationTolerance:  NormalSpec{Mean: 0.75, StdDev: 0.10, Min: 0.4, Max: 1.0},
		CognitiveLoadCapacity: NormalSpec{Mean: 0.85, StdDev: 0.08, Min: 0.5, Max: 1.0},
		HelpSeekingDelay:      NormalSpec{Mean: 0.30, StdDev: 0.12, Min: 0, Max: 0.7},
		AnxietySensitivity:    NormalSpec{Mean: 0.20, StdDev: 0.10, Min: 0, Max: 0.6},

		BaseResponseTime:         DurationSpec{Mean: 8 * time.Second, StdDev: 3 * time.Second, Min: 2 * time.Second, Max: 30 * time.Second},
		ComplexityMultiplier:     NormalSpec{Mean: 1.3, StdDev: 0.2, Min: 1.0, Max: 2.0},
		PreferredSessionDuration: DurationSpec{Mean: 45 * time.Minute, StdDev: 12 * time.Minute, Min: 15 * time.Minute, Max: 2 * time.Hour},

		ComprehensionBias:  models.ComprehensionStyle{Visual: 0.30, Auditory: 0.20, Kinesthetic: 0.15, ReadingWriting: 0.35},
		EngagementBaseline: NormalSpec{Mean: 0.80, StdDev: 0.08, Min: 0.5, Max: 1.0},

		AgeGroupWeights:      []float64{0.10, 0.35, 0.35, 0.20},
		AcademicLevelWeights: []float64{0.10, 0.30, 0.40, 0.20},
	}
}

func steadyAchieverTemplate() *AttributeTemplate {
	return &AttributeTemplate{
		Persona:              models.PersonaSteadyAchiever,
		LearningVelocityBase: NormalSpec{Mean: 0.60, StdDev: 0.08, Min: 0.35, Max: 0.90},
		PlateauFactor:        NormalSpec{Mean: 0.40, StdDev: 0.10, Min: 0.10, Max: 0.70},
		MemoryRetention:      NormalSpec{Mean: 0.70, StdDev: 0.08, Min: 0.40, Max: 0.95},

		ConfusionTendency:     NormalSpec{Mean: 0.30, StdDev: 0.10, Min: 0, Max: 0.7},
		FrustrationTolerance:  NormalSpec{Mean: 0.65, StdDev: 0.10, Min: 0.3, Max: 0.95},
		CognitiveLoadCapacity: NormalSpec{Mean: 0.65, StdDev: 0.10, Min: 0.3, Max: 0.95},
		HelpSeekingDelay:      NormalSpec{Mean: 0.40, StdDev: 0.12, Min: 0.05, Max: 0.8},
		AnxietySensitivity:    NormalSpec{Mean: 0.35, StdDev: 0.12, Min: 0.05, Max: 0.75},

		BaseResponseTime:         DurationSpec{Mean: 14 * time.Second, StdDev: 4 * time.Second, Min: 5 * time.Second, Max: 45 * time.Second},
		ComplexityMultiplier:     NormalSpec{Mean: 1.6, StdDev: 0.25, Min: 1.1, Max: 2.5},
		PreferredSessionDuration: DurationSpec{Mean: 35 * time.Minute, StdDev: 10 * time.Minute, Min: 15 * time.Minute, Max: 90 * time.Minute},

		ComprehensionBias:  models.ComprehensionStyle{Visual: 0.25, Auditory: 0.25, Kinesthetic: 0.20, ReadingWriting: 0.30},
		EngagementBaseline: NormalSpec{Mean: 0.65, StdDev: 0.08, Min: 0.35, Max: 0.9},

		AgeGroupWeights:      []float64{0.20, 0.35, 0.25, 0.20},
		AcademicLevelWeights: []float64{0.20, 0.35, 0.30, 0.15},
	}
}

func strugglingStudentTemplate() *AttributeTemplate {
	return &AttributeTemplate{
		Persona:              models.PersonaStrugglingStudent,
		LearningVelocityBase: NormalSpec{Mean: 0.35, StdDev: 0.10, Min: 0.10, Max: 0.65},
		PlateauFactor:        NormalSpec{Mean: 0.55, StdDev: 0.12, Min: 0.20, Max: 0.85},
		MemoryRetention:      NormalSpec{Mean: 0.45, StdDev: 0.10, Min: 0.15, Max: 0.75},

		ConfusionTendency:     NormalSpec{Mean: 0.65, StdDev: 0.12, Min: 0.3, Max: 1.0},
		FrustrationTolerance:  NormalSpec{Mean: 0.40, StdDev: 0.12, Min: 0.1, Max: 0.75},
		CognitiveLoadCapacity: NormalSpec{Mean: 0.40, StdDev: 0.10, Min: 0.1, Max: 0.7},
		HelpSeekingDelay:      NormalSpec{Mean: 0.55, StdDev: 0.15, Min: 0.1, Max: 1.0},
		AnxietySensitivity:    NormalSpec{Mean: 0.50, StdDev: 0.15, Min: 0.1, Max: 0.9},

		BaseResponseTime:         DurationSpec{Mean: 25 * time.Second, StdDev: 8 * time.Second, Min: 8 * time.Second, Max: 90 * time.Second},
		ComplexityMultiplier:     NormalSpec{Mean: 2.2, StdDev: 0.4, Min: 1.4, Max: 3.5},
		PreferredSessionDuration: DurationSpec{Mean: 25 * time.Minute, StdDev: 8 * time.Minute, Min: 10 * time.Minute, Max: 60 * time.Minute},

		ComprehensionBias:  models.ComprehensionStyle{Visual: 0.35, Auditory: 0.25, Kinesthetic: 0.25, ReadingWriting: 0.15},
		EngagementBaseline: NormalSpec{Mean: 0.45, StdDev: 0.10, Min: 0.2, Max: 0.75},

		AgeGroupWeights:      []float64{0.25, 0.40, 0.20, 0.15},
		AcademicLevelWeights: []float64{0.30, 0.40, 0.20, 0.10},
	}
}

func anxiousStudentTemplate() *AttributeTemplate {
	return &AttributeTemplate{
		Persona:              models.PersonaAnxiousStudent,
		LearningVelocityBase: NormalSpec{Mean: 0.55, StdDev: 0.12, Min: 0.20, Max: 0.85},
		PlateauFactor:        NormalSpec{Mean: 0.45, StdDev: 0.12, Min: 0.15, Max: 0.75},
		MemoryRetention:      NormalSpec{Mean: 0.60, StdDev: 0.10, Min: 0.30, Max: 0.90},

		ConfusionTendency:     NormalSpec{Mean: 0.45, StdDev: 0.12, Min: 0.15, Max: 0.85},
		FrustrationTolerance:  NormalSpec{Mean: 0.35, StdDev: 0.12, Min: 0.05, Max: 0.7},
		CognitiveLoadCapacity: NormalSpec{Mean: 0.50, StdDev: 0.12, Min: 0.2, Max: 0.8},
		HelpSeekingDelay:      NormalSpec{Mean: 0.70, StdDev: 0.12, Min: 0.35, Max: 1.0},
		AnxietySensitivity:    NormalSpec{Mean: 0.80, StdDev: 0.10, Min: 0.5, Max: 1.0},

		BaseResponseTime:         DurationSpec{Mean: 20 * time.Second, StdDev: 7 * time.Second, Min: 6 * time.Second, Max: 75 * time.Second},
		ComplexityMultiplier:     NormalSpec{Mean: 1.9, StdDev: 0.35, Min: 1.2, Max: 3.0},
		PreferredSessionDuration: DurationSpec{Mean: 30 * time.Minute, StdDev: 10 * time.Minute, Min: 10 * time.Minute, Max: 75 * time.Minute},

		ComprehensionBias:  models.ComprehensionStyle{Visual: 0.30, Auditory: 0.20, Kinesthetic: 0.15, ReadingWriting: 0.35},
		EngagementBaseline: NormalSpec{Mean: 0.55, StdDev: 0.12, Min: 0.25, Max: 0.85},

		AgeGroupWeights:      []float64{0.15, 0.40, 0.30, 0.15},
		AcademicLevelWeights: []float64{0.15, 0.35, 0.35, 0.15},
	}
}

func disengagedTemplate() *AttributeTemplate {
	return &AttributeTemplate{
		Persona:              models.PersonaDisengaged,
		LearningVelocityBase: NormalSpec{Mean: 0.40, StdDev: 0.12, Min: 0.10, Max: 0.75},
		PlateauFactor:        NormalSpec{Mean: 0.50, StdDev: 0.12, Min: 0.20, Max: 0.80},
		MemoryRetention:      NormalSpec{Mean: 0.50, StdDev: 0.12, Min: 0.20, Max: 0.85},

		ConfusionTendency:     NormalSpec{Mean: 0.40, StdDev: 0.15, Min: 0.1, Max: 0.8},
		FrustrationTolerance:  NormalSpec{Mean: 0.30, StdDev: 0.12, Min: 0.05, Max: 0.65},
		CognitiveLoadCapacity: NormalSpec{Mean: 0.55, StdDev: 0.12, Min: 0.25, Max: 0.85},
		HelpSeekingDelay:      NormalSpec{Mean: 0.80, StdDev: 0.10, Min: 0.5, Max: 1.0},
		AnxietySensitivity:    NormalSpec{Mean: 0.30, StdDev: 0.12, Min: 0.05, Max: 0.65},

		BaseResponseTime:         DurationSpec{Mean: 18 * time.Second, StdDev: 9 * time.Second, Min: 4 * time.Second, Max: 90 * time.Second},
		ComplexityMultiplier:     NormalSpec{Mean: 1.8, StdDev: 0.4, Min: 1.1, Max: 3.2},
		PreferredSessionDuration: DurationSpec{Mean: 15 * time.Minute, StdDev: 6 * time.Minute, Min: 5 * time.Minute, Max: 40 * time.Minute},

		ComprehensionBias:  models.ComprehensionStyle{Visual: 0.35, Auditory: 0.30, Kinesthetic: 0.25, ReadingWriting: 0.10},
		EngagementBaseline: NormalSpec{Mean: 0.30, StdDev: 0.10, Min: 0.1, Max: 0.6},

		AgeGroupWeights:      []float64{0.20, 0.45, 0.20, 0.15},
		AcademicLevelWeights: []float64{0.25, 0.45, 0.20, 0.10},
	}
}

// ResolveDistribution validates and normalizes a persona distribution.
// Every referenced persona must resolve through TemplateFor. Weights that do
// not sum to 1 are normalized; the caller is expected to log a warning when
// normalization changed them.
func ResolveDistribution(dist map[models.Persona]float64) (map[models.Persona]float64, bool, error) {
	if len(dist) == 0 {
		return DefaultDistribution(), false, nil
	}

	var sum float64
	for p, w := range dist {
		if _, err := TemplateFor(p); err != nil {
			return nil, false, err
		}
		if w < 0 {
			return nil, false, errors.NewConfigurationError(errors.CodeInvalidDistribution,
				fmt.Sprintf("persona %q has negative weight %g", p, w))
		}
		sum += w
	}
	if sum <= 0 {
		return nil, false, errors.NewConfigurationError(errors.CodeInvalidDistribution,
			"persona distribution weights sum to zero")
	}

	normalized := sum < 0.999 || sum > 1.001
	out := make(map[models.Persona]float64, len(dist))
	for p, w := range dist {
		out[p] = w / sum
	}
	return out, normalized, nil
}
