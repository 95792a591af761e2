// Package profiles draws synthetic cognitive profiles from the persona
// catalogue, one per student, with persona-correlated traits and budgeted
// individual variability.
package profiles

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synthlearn/synthlearn/internal/personas"
	"github.com/synthlearn/synthlearn/internal/privacy"
	"github.com/synthlearn/synthlearn/pkg/constants"
	"github.com/synthlearn/synthlearn/pkg/errors"
	"github.com/synthlearn/synthlearn/pkg/models"
)

// Fractions of a profile's sub-budget spent on attribute jitter. The rest of
// the sub-budget funds session-level noise in the simulation engine. Fixed so
// the spend pattern is identical across runs and scheduling orders.
const (
	jitterEpsilonFraction = 0.3
	jitterDeltaFraction   = 0.3
)

// Sampler draws one CognitiveProfile per call from a persona mix.
type Sampler struct {
	logger       *logrus.Logger
	distribution map[models.Persona]float64
	ordered      []models.Persona // fixed iteration order for the categorical draw
	quality      models.QualityParams
	realism      models.RealismConstraints
}

// NewSampler validates the persona distribution against the catalogue and
// returns a sampler. An unresolvable persona reference fails here, before any
// sampling begins.
func NewSampler(
	distribution map[models.Persona]float64,
	quality models.QualityParams,
	realism models.RealismConstraints,
	logger *logrus.Logger,
) (*Sampler, error) {
	if logger == nil {
		logger = logrus.New()
	}

	resolved, normalized, err := personas.ResolveDistribution(distribution)
	if err != nil {
		return nil, err
	}
	if normalized {
		logger.WithField("personas", len(resolved)).
			Warn("Persona weights did not sum to 1; normalized")
	}

	ordered := make([]models.Persona, 0, len(resolved))
	for p := range resolved {
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	return &Sampler{
		logger:       logger,
		distribution: resolved,
		ordered:      ordered,
		quality:      quality,
		realism:      realism,
	}, nil
}

// Distribution returns the resolved, normalized persona mix.
func (s *Sampler) Distribution() map[models.Persona]float64 {
	out := make(map[models.Persona]float64, len(s.distribution))
	for p, w := range s.distribution {
		out[p] = w
	}
	return out
}

// Sample draws one profile. All randomness comes from rng; all distorting
// noise is funded by the supplied budget ledger. With a per-profile
// sub-controller the epsilon cost per profile is fixed up front.
func (s *Sampler) Sample(rng *rand.Rand, budget *privacy.Controller) (models.CognitiveProfile, error) {
	persona := s.drawPersona(rng)

	tmpl, err := personas.TemplateFor(persona)
	if err != nil {
		// Distribution was validated at construction; reaching this means the
		// catalogue and validation disagree.
		return models.CognitiveProfile{}, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, "validated persona failed template lookup")
	}

	// A configured fraction of profiles is deliberately left unclamped to
	// model genuine outliers.
	isOutlier := rng.Float64() < s.quality.OutlierRate
	clamp := !isOutlier

	profile := models.CognitiveProfile{
		Persona:   persona,
		IsOutlier: isOutlier,
		Demographics: models.Demographics{
			AgeGroup:      models.AgeGroups()[weightedIndex(rng, tmpl.AgeGroupWeights)],
			AcademicLevel: models.AcademicLevels()[weightedIndex(rng, tmpl.AcademicLevelWeights)],
		},
		LearningVelocity: models.LearningVelocity{
			BaseRate:      drawNormal(rng, tmpl.LearningVelocityBase, clamp),
			PlateauFactor: drawNormal(rng, tmpl.PlateauFactor, clamp),
		},
		MemoryRetention: drawNormal(rng, tmpl.MemoryRetention, clamp),
		StrugglePatterns: models.StrugglePatterns{
			ConfusionTendency:     drawNormal(rng, tmpl.ConfusionTendency, clamp),
			FrustrationTolerance:  drawNormal(rng, tmpl.FrustrationTolerance, clamp),
			CognitiveLoadCapacity: drawNormal(rng, tmpl.CognitiveLoadCapacity, clamp),
			HelpSeekingDelay:      drawNormal(rng, tmpl.HelpSeekingDelay, clamp),
			AnxietySensitivity:    drawNormal(rng, tmpl.AnxietySensitivity, clamp),
		},
		InteractionTiming: models.InteractionTiming{
			BaseResponseTime:         drawDuration(rng, tmpl.BaseResponseTime, clamp),
			ComplexityMultiplier:     drawNormal(rng, tmpl.ComplexityMultiplier, clamp),
			PreferredSessionDuration: drawDuration(rng, tmpl.PreferredSessionDuration, clamp),
		},
		ComprehensionStyle: drawComprehensionStyle(rng, tmpl.ComprehensionBias),
	}

	if s.realism.IncludeIndividualVariability {
		if err := s.applyVariability(rng, budget, &profile, clamp); err != nil {
			return models.CognitiveProfile{}, err
		}
	}

	if s.realism.EnforcePsychologicalConsistency {
		applyConsistencyRules(&profile)
	}

	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return models.CognitiveProfile{}, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, "failed to derive student id")
	}
	profile.StudentID = id.String()

	return profile, nil
}

// drawPersona performs the weighted categorical draw in a fixed persona order.
func (s *Sampler) drawPersona(rng *rand.Rand) models.Persona {
	u := rng.Float64()
	var cum float64
	for _, p := range s.ordered {
		cum += s.distribution[p]
		if u < cum {
			return p
		}
	}
	return s.ordered[len(s.ordered)-1]
}

// applyVariability adds bounded Gaussian jitter to the trait attributes,
// funded through the budget ledger. The jitter sigma is the larger of the
// configured noise floor and a small fraction of the trait domain.
func (s *Sampler) applyVariability(rng *rand.Rand, budget *privacy.Controller, p *models.CognitiveProfile, clamp bool) error {
	epsBudget, deltaBudget := budget.Remaining()
	eps := epsBudget * jitterEpsilonFraction
	delta := deltaBudget * jitterDeltaFraction
	sensitivity := s.quality.NoiseLevelStd
	if sensitivity < 0.02 {
		sensitivity = 0.02
	}

	sigma, err := budget.AllocateGaussian(constants.OpProfileAttributeNoise, eps, delta, sensitivity)
	if err != nil {
		return err
	}
	// The allocation-derived sigma explodes for tiny epsilon; jitter stays
	// bounded to at most a tenth of the unit trait domain.
	if sigma > 0.1 {
		sigma = 0.1
	}

	jitter := func(v float64) float64 {
		v += privacy.SampleGaussian(rng, sigma)
		if clamp {
			v = privacy.Clamp(v, 0, 1)
		}
		return v
	}

	p.LearningVelocity.BaseRate = jitter(p.LearningVelocity.BaseRate)
	p.MemoryRetention = jitter(p.MemoryRetention)
	p.StrugglePatterns.ConfusionTendency = jitter(p.StrugglePatterns.ConfusionTendency)
	p.StrugglePatterns.FrustrationTolerance = jitter(p.StrugglePatterns.FrustrationTolerance)
	p.StrugglePatterns.CognitiveLoadCapacity = jitter(p.StrugglePatterns.CognitiveLoadCapacity)
	p.StrugglePatterns.HelpSeekingDelay = jitter(p.StrugglePatterns.HelpSeekingDelay)
	p.StrugglePatterns.AnxietySensitivity = jitter(p.StrugglePatterns.AnxietySensitivity)
	return nil
}

// applyConsistencyRules enforces deterministic cross-attribute adjustments so
// a profile is not an implausible trait combination: confusion drags velocity
// down, anxiety delays help-seeking, low load capacity shortens sessions, and
// frustration intolerance erodes retention under struggle.
func applyConsistencyRules(p *models.CognitiveProfile) {
	sp := &p.StrugglePatterns

	p.LearningVelocity.BaseRate *= 1 - 0.35*sp.ConfusionTendency
	sp.HelpSeekingDelay += 0.3 * sp.AnxietySensitivity * (1 - sp.HelpSeekingDelay)

	if sp.CognitiveLoadCapacity < 0.4 {
		scaled := time.Duration(float64(p.InteractionTiming.PreferredSessionDuration) *
			(0.6 + sp.CognitiveLoadCapacity))
		if scaled < constants.MinSessionDuration {
			scaled = constants.MinSessionDuration
		}
		p.InteractionTiming.PreferredSessionDuration = scaled
	}

	if sp.FrustrationTolerance < 0.3 {
		p.MemoryRetention *= 0.85 + 0.5*sp.FrustrationTolerance
	}

	p.LearningVelocity.BaseRate = privacy.Clamp(p.LearningVelocity.BaseRate, 0.01, 1)
	p.MemoryRetention = privacy.Clamp(p.MemoryRetention, 0.05, 1)
	sp.HelpSeekingDelay = privacy.Clamp(sp.HelpSeekingDelay, 0, 1)
}

func drawNormal(rng *rand.Rand, spec personas.NormalSpec, clamp bool) float64 {
	v := spec.Mean + rng.NormFloat64()*spec.StdDev
	if clamp {
		v = privacy.Clamp(v, spec.Min, spec.Max)
	}
	return v
}

func drawDuration(rng *rand.Rand, spec personas.DurationSpec, clamp bool) time.Duration {
	v := float64(spec.Mean) + rng.NormFloat64()*float64(spec.StdDev)
	if clamp {
		v = privacy.Clamp(v, float64(spec.Min), float64(spec.Max))
	} else if v < float64(time.Second) {
		v = float64(time.Second)
	}
	return time.Duration(v)
}

// drawComprehensionStyle draws modality weights around the persona bias and
// renormalizes them to sum to 1.
func drawComprehensionStyle(rng *rand.Rand, bias models.ComprehensionStyle) models.ComprehensionStyle {
	draw := func(b float64) float64 {
		v := b + rng.NormFloat64()*0.08
		if v < 0.01 {
			v = 0.01
		}
		return v
	}

	visual := draw(bias.Visual)
	auditory := draw(bias.Auditory)
	kinesthetic := draw(bias.Kinesthetic)
	reading := draw(bias.ReadingWriting)
	total := visual + auditory + kinesthetic + reading

	return models.ComprehensionStyle{
		Visual:         visual / total,
		Auditory:       auditory / total,
		Kinesthetic:    kinesthetic / total,
		ReadingWriting: reading / total,
	}
}

// weightedIndex draws an index from categorical weights; weights need not sum
// to 1.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0
	}
	u := rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if u < cum {
			return i
		}
	}
	return len(weights) - 1
}
