package validation

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlearn/synthlearn/internal/privacy"
	"github.com/synthlearn/synthlearn/pkg/models"
)

func validationParams() models.GenerationParams {
	return models.GenerationParams{
		StudentCount: 10,
		TimeRange: models.TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		PrivacyParams: models.PrivacyParams{EpsilonBudget: 1.0, DeltaPrivacy: 1e-5, KAnonymity: 3},
		RealismConstraints: models.RealismConstraints{
			EnforcePsychologicalConsistency: true,
		},
	}
}

func validationBudget(t *testing.T, k int) *privacy.Controller {
	t.Helper()
	c, err := privacy.NewController(models.PrivacyParams{
		EpsilonBudget: 1.0,
		DeltaPrivacy:  1e-5,
		KAnonymity:    k,
	}, nil)
	require.NoError(t, err)
	return c
}

// flatDataset holds `per` students of each persona in the given list.
func flatDataset(personas []models.Persona, per int) *models.Dataset {
	ds := &models.Dataset{}
	i := 0
	for _, persona := range personas {
		for j := 0; j < per; j++ {
			ds.Profiles = append(ds.Profiles, models.CognitiveProfile{
				StudentID:       fmt.Sprintf("student-%03d", i),
				Persona:         persona,
				MemoryRetention: 0.7,
			})
			i++
		}
	}
	return ds
}

func TestValidateEmptyDataset(t *testing.T) {
	v := NewValidator(nil)
	rng := rand.New(rand.NewSource(1))

	metrics := v.Validate(rng, &models.Dataset{}, validationParams(), nil, validationBudget(t, 3))

	assert.Equal(t, 1.0, metrics.DistributionFidelity)
	assert.Zero(t, metrics.PrivacyMetrics.ReidentificationRisk)
	assert.True(t, metrics.PrivacyMetrics.WithinCeiling)
}

func TestDistributionFidelityExactMatch(t *testing.T) {
	requested := map[models.Persona]float64{
		models.PersonaFastLearner:       0.5,
		models.PersonaStrugglingStudent: 0.5,
	}
	ds := flatDataset([]models.Persona{models.PersonaFastLearner, models.PersonaStrugglingStudent}, 10)

	v := NewValidator(nil)
	metrics := v.Validate(rand.New(rand.NewSource(2)), ds, validationParams(), requested, validationBudget(t, 3))

	assert.InDelta(t, 1.0, metrics.DistributionFidelity, 1e-9)
	assert.Empty(t, metrics.Warnings)

	// Both groups have 10 members, above k=3, so both deviations release.
	assert.Len(t, metrics.PersonaDeviation, 2)
	assert.Zero(t, metrics.SuppressedAggregates)
}

func TestDistributionFidelitySkewedMix(t *testing.T) {
	requested := map[models.Persona]float64{
		models.PersonaFastLearner:       0.5,
		models.PersonaStrugglingStudent: 0.5,
	}
	// Realized 80/20 against requested 50/50: TV distance 0.3.
	ds := flatDataset([]models.Persona{models.PersonaFastLearner}, 16)
	for _, p := range flatDataset([]models.Persona{models.PersonaStrugglingStudent}, 4).Profiles {
		ds.Profiles = append(ds.Profiles, p)
	}

	v := NewValidator(nil)
	metrics := v.Validate(rand.New(rand.NewSource(3)), ds, validationParams(), requested, validationBudget(t, 3))

	assert.InDelta(t, 0.7, metrics.DistributionFidelity, 1e-9)
	require.NotEmpty(t, metrics.Warnings)

	// The warning quotes the noised released deviation, never the exact one.
	released := metrics.PersonaDeviation[models.PersonaFastLearner]
	assert.Greater(t, math.Abs(released-0.3), 1e-9)
	for _, w := range metrics.Warnings {
		if strings.Contains(w, string(models.PersonaFastLearner)) {
			assert.Contains(t, w, fmt.Sprintf("%.3f", released))
		}
	}
}

func TestKAnonymitySuppressesSmallGroups(t *testing.T) {
	requested := map[models.Persona]float64{
		models.PersonaFastLearner: 0.9,
		models.PersonaDisengaged:  0.1,
	}
	// 18 fast learners, 2 disengaged: the disengaged group sits below k=5.
	ds := flatDataset([]models.Persona{models.PersonaFastLearner}, 18)
	for _, p := range flatDataset([]models.Persona{models.PersonaDisengaged}, 2).Profiles {
		ds.Profiles = append(ds.Profiles, p)
	}

	params := validationParams()
	params.PrivacyParams.KAnonymity = 5

	v := NewValidator(nil)
	metrics := v.Validate(rand.New(rand.NewSource(4)), ds, params, requested, validationBudget(t, 5))

	assert.Equal(t, 1, metrics.SuppressedAggregates)
	_, released := metrics.PersonaDeviation[models.PersonaDisengaged]
	assert.False(t, released, "undersized group must be suppressed, not approximated")
	_, released = metrics.PersonaDeviation[models.PersonaFastLearner]
	assert.True(t, released)
}

func TestPsychologyComplianceCorrelatedTrajectories(t *testing.T) {
	// Accuracy tracks the gap-driven retention prediction exactly: short gaps
	// give high accuracy, long gaps low. Correlation should be strongly
	// positive.
	ds := flatDataset([]models.Persona{models.PersonaSteadyAchiever}, 1)
	id := ds.Profiles[0].StudentID

	start := time.Date(2025, 1, 1, 17, 0, 0, 0, time.UTC)
	gaps := []int{1, 5, 1, 9, 2, 7, 1, 4}
	at := start
	for i, gap := range gaps {
		at = at.AddDate(0, 0, gap)
		correct := 9 - gap // short gap, high accuracy
		ds.Sessions = append(ds.Sessions, models.LearningSession{
			SessionID:         fmt.Sprintf("s-%d", i),
			StudentID:         id,
			StartTime:         at,
			QuestionsAnswered: 10,
			CorrectAnswers:    correct,
		})
	}

	v := NewValidator(nil)
	metrics := v.Validate(rand.New(rand.NewSource(5)), ds, validationParams(), nil, validationBudget(t, 3))

	assert.Greater(t, metrics.PsychologyCompliance.ForgettingCurveCorrelation, 0.3)
	assert.True(t, metrics.PsychologyCompliance.MeetsThreshold)
}

func TestPsychologyComplianceTooFewSessions(t *testing.T) {
	ds := flatDataset([]models.Persona{models.PersonaSteadyAchiever}, 3)

	t.Run("enforced", func(t *testing.T) {
		v := NewValidator(nil)
		metrics := v.Validate(rand.New(rand.NewSource(6)), ds, validationParams(), nil, validationBudget(t, 3))
		assert.False(t, metrics.PsychologyCompliance.MeetsThreshold)
	})

	t.Run("not enforced", func(t *testing.T) {
		params := validationParams()
		params.RealismConstraints.EnforcePsychologicalConsistency = false
		v := NewValidator(nil)
		metrics := v.Validate(rand.New(rand.NewSource(6)), ds, params, nil, validationBudget(t, 3))
		assert.True(t, metrics.PsychologyCompliance.MeetsThreshold)
	})
}

func TestPrivacyRiskCeiling(t *testing.T) {
	ds := flatDataset([]models.Persona{models.PersonaSteadyAchiever}, 10)
	for i := 0; i < 100; i++ {
		ds.PrivacyAttacks = append(ds.PrivacyAttacks, models.PrivacyAttackRecord{
			AttackType: models.AttackPersonaFingerprint,
			Success:    i < 60, // 60% success rate
		})
	}

	params := validationParams()
	params.PrivacyParams.KAnonymity = 5 // ceiling 0.30

	v := NewValidator(nil)
	metrics := v.Validate(rand.New(rand.NewSource(7)), ds, params, nil, validationBudget(t, 5))

	assert.InDelta(t, 0.6, metrics.PrivacyMetrics.ReidentificationRisk, 1e-9)
	assert.InDelta(t, 0.3, metrics.PrivacyMetrics.RiskCeiling, 1e-9)
	assert.False(t, metrics.PrivacyMetrics.WithinCeiling)
	assert.NotEmpty(t, metrics.Warnings)
}

func TestValidateSpendsReleaseBudget(t *testing.T) {
	requested := map[models.Persona]float64{
		models.PersonaFastLearner:       0.5,
		models.PersonaStrugglingStudent: 0.5,
	}
	ds := flatDataset([]models.Persona{models.PersonaFastLearner, models.PersonaStrugglingStudent}, 10)

	budget := validationBudget(t, 3)
	v := NewValidator(nil)
	v.Validate(rand.New(rand.NewSource(8)), ds, validationParams(), requested, budget)

	spentEps, _ := budget.Spent()
	assert.Positive(t, spentEps)
	assert.LessOrEqual(t, spentEps, 1.0)
	assert.Len(t, budget.Transactions(), 2)
}
