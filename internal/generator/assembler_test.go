package generator

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

func baseParams(students int, seed int64) models.GenerationParams {
	return models.GenerationParams{
		StudentCount: students,
		TimeRange: models.TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		PrivacyParams: models.PrivacyParams{EpsilonBudget: 1.0, DeltaPrivacy: 1e-5, KAnonymity: 3},
		QualityParams: models.QualityParams{NoiseLevelStd: 0.05, MissingDataRate: 0.02, OutlierRate: 0.03},
		RealismConstraints: models.RealismConstraints{
			EnforcePsychologicalConsistency:  true,
			ApplyEducationalResearchPatterns: true,
			IncludeIndividualVariability:     true,
			GenerateTemporalCorrelations:     true,
		},
		Seed: &seed,
	}
}

func TestGenerateDeterministic(t *testing.T) {
	run := func(workers int) *models.Dataset {
		a := NewAssembler(&Config{Workers: workers}, nil)
		ds, err := a.Generate(context.Background(), baseParams(20, 42))
		require.NoError(t, err)
		return ds
	}

	first := run(1)
	second := run(1)
	assert.Equal(t, first, second)

	// Worker count is a throughput knob, never an output knob.
	parallel := run(8)
	assert.Equal(t, first, parallel)

	// Byte-identical through serialization as well.
	fb, err := json.Marshal(first)
	require.NoError(t, err)
	pb, err := json.Marshal(parallel)
	require.NoError(t, err)
	assert.Equal(t, fb, pb)
}

func TestGenerateSeedSensitivity(t *testing.T) {
	a := NewAssembler(nil, nil)

	first, err := a.Generate(context.Background(), baseParams(10, 1))
	require.NoError(t, err)
	second, err := a.Generate(context.Background(), baseParams(10, 2))
	require.NoError(t, err)

	assert.NotEqual(t, first.Profiles, second.Profiles)
}

func TestGenerateEntropySeed(t *testing.T) {
	params := baseParams(3, 0)
	params.Seed = nil

	a := NewAssembler(nil, nil)
	ds, err := a.Generate(context.Background(), params)
	require.NoError(t, err)

	assert.False(t, ds.Reproducible)
	assert.Len(t, ds.Profiles, 3)
}

func TestGenerateZeroStudents(t *testing.T) {
	a := NewAssembler(nil, nil)
	ds, err := a.Generate(context.Background(), baseParams(0, 7))
	require.NoError(t, err)

	assert.Empty(t, ds.Profiles)
	assert.Empty(t, ds.Sessions)
	assert.Empty(t, ds.PrivacyAttacks)
	assert.True(t, ds.Reproducible)
	assert.Equal(t, 1.0, ds.QualityMetrics.DistributionFidelity)
}

func TestGenerateScenario(t *testing.T) {
	// Reference scenario: 50 students over three months with the default
	// privacy and quality settings.
	params := baseParams(50, 12345)

	a := NewAssembler(nil, nil)
	ds, err := a.Generate(context.Background(), params)
	require.NoError(t, err)

	assert.Len(t, ds.Profiles, 50)
	assert.True(t, ds.Reproducible)
	assert.Equal(t, int64(12345), ds.Seed)
	assert.NotEmpty(t, ds.Sessions)
	assert.NotEmpty(t, ds.PrivacyAttacks)

	// Every session belongs to a generated profile and sits in range.
	ids := make(map[string]bool, len(ds.Profiles))
	for _, p := range ds.Profiles {
		require.NotEmpty(t, p.StudentID)
		require.False(t, ids[p.StudentID], "duplicate student id")
		ids[p.StudentID] = true
	}
	for _, s := range ds.Sessions {
		assert.True(t, ids[s.StudentID])
		assert.False(t, s.StartTime.Before(params.TimeRange.Start))
		assert.True(t, s.StartTime.Before(params.TimeRange.End))
	}

	// Documented risk ceiling for k=3 is 1/3 + 0.10.
	assert.InDelta(t, 1.0/3+0.10, ds.QualityMetrics.PrivacyMetrics.RiskCeiling, 1e-9)
	assert.True(t, ds.QualityMetrics.PrivacyMetrics.WithinCeiling,
		"risk %.3f above ceiling", ds.QualityMetrics.PrivacyMetrics.ReidentificationRisk)
}

func TestGeneratePersonaDistributionConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large-cohort convergence test in short mode")
	}

	params := baseParams(1000, 9)
	params.PersonaDistribution = map[models.Persona]float64{
		models.PersonaFastLearner:       0.15,
		models.PersonaSteadyAchiever:    0.35,
		models.PersonaStrugglingStudent: 0.25,
		models.PersonaAnxiousStudent:    0.15,
		models.PersonaDisengaged:        0.10,
	}

	a := NewAssembler(nil, nil)
	ds, err := a.Generate(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, ds.Profiles, 1000)

	counts := map[models.Persona]int{}
	for _, p := range ds.Profiles {
		counts[p.Persona]++
	}
	for persona, want := range params.PersonaDistribution {
		got := float64(counts[persona]) / 1000
		assert.InDelta(t, want, got, 0.04, "persona %s", persona)
	}

	assert.Greater(t, ds.QualityMetrics.DistributionFidelity, 0.95)
}

func TestGenerateBudgetConservation(t *testing.T) {
	// Property: across randomized valid parameter sets, total recorded spend
	// never exceeds the configured budget and every run stays reproducible.
	rng := rand.New(rand.NewSource(31))

	for trial := 0; trial < 10; trial++ {
		seed := rng.Int63()
		params := baseParams(1+rng.Intn(15), seed)
		params.PrivacyParams.EpsilonBudget = 0.5 + rng.Float64()*4.5
		params.PrivacyParams.DeltaPrivacy = 1e-6 + rng.Float64()*1e-4
		params.PrivacyParams.KAnonymity = 2 + rng.Intn(6)
		params.QualityParams.OutlierRate = rng.Float64() * 0.1
		params.QualityParams.MissingDataRate = rng.Float64() * 0.1

		a := NewAssembler(&Config{Workers: 1 + rng.Intn(4)}, nil)
		ds, err := a.Generate(context.Background(), params)
		require.NoError(t, err, "trial %d", trial)
		assert.Len(t, ds.Profiles, params.StudentCount)
		assert.True(t, ds.Reproducible)
	}
}

func TestValidateParamsBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.GenerationParams)
		wantCode string
	}{
		{
			"negative student count",
			func(p *models.GenerationParams) { p.StudentCount = -1 },
			errors.CodeInvalidStudentCount,
		},
		{
			"end before start",
			func(p *models.GenerationParams) { p.TimeRange.End = p.TimeRange.Start.Add(-time.Hour) },
			errors.CodeInvalidTimeRange,
		},
		{
			"end equals start",
			func(p *models.GenerationParams) { p.TimeRange.End = p.TimeRange.Start },
			errors.CodeInvalidTimeRange,
		},
		{
			"zero epsilon",
			func(p *models.GenerationParams) { p.PrivacyParams.EpsilonBudget = 0 },
			errors.CodeInvalidPrivacy,
		},
		{
			"delta of one",
			func(p *models.GenerationParams) { p.PrivacyParams.DeltaPrivacy = 1 },
			errors.CodeInvalidPrivacy,
		},
		{
			"k below two",
			func(p *models.GenerationParams) { p.PrivacyParams.KAnonymity = 1 },
			errors.CodeInvalidPrivacy,
		},
		{
			"negative noise",
			func(p *models.GenerationParams) { p.QualityParams.NoiseLevelStd = -0.1 },
			errors.CodeInvalidQuality,
		},
		{
			"missing rate above one",
			func(p *models.GenerationParams) { p.QualityParams.MissingDataRate = 1.5 },
			errors.CodeInvalidQuality,
		},
		{
			"outlier rate below zero",
			func(p *models.GenerationParams) { p.QualityParams.OutlierRate = -0.5 },
			errors.CodeInvalidQuality,
		},
		{
			"unknown persona",
			func(p *models.GenerationParams) {
				p.PersonaDistribution = map[models.Persona]float64{models.Persona("savant"): 1}
			},
			errors.CodeUnknownPersona,
		},
		{
			"negative persona weight",
			func(p *models.GenerationParams) {
				p.PersonaDistribution = map[models.Persona]float64{models.PersonaFastLearner: -1}
			},
			errors.CodeInvalidDistribution,
		},
	}

	a := NewAssembler(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := baseParams(5, 1)
			tt.mutate(&params)

			_, err := a.Generate(context.Background(), params)
			require.Error(t, err)
			appErr, ok := err.(*errors.AppError)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAssembler(nil, nil)
	_, err := a.Generate(ctx, baseParams(50, 3))
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.CodeGenerationFailed, appErr.Code)
}

func TestSubSeedDistinct(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		s := subSeed(42, i)
		assert.False(t, seen[s], "collision at index %d", i)
		seen[s] = true
	}
}
