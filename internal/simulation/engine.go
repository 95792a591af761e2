// Package simulation expands cognitive profiles into time-ordered learning
// sessions. Accuracy follows an Ebbinghaus-style retention curve, review
// spacing follows an SM-2-like rule, and engagement can carry AR(1)
// persistence across sessions, which makes generation for one profile
// inherently sequential.
package simulation

import (
	"fmt"
	"math"
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

// Fraction of the profile sub-budget (whatever sampling left) spent on
// session-level noise, split evenly between accuracy and timing draws.
const sessionNoiseBudgetFraction = 0.8

// Target daily study time used to derive the session arrival rate, scaled by
// the persona's engagement baseline.
const nominalDailyStudy = 45 * time.Minute

// Engine simulates learning sessions for one profile at a time.
type Engine struct {
	logger  *logrus.Logger
	quality models.QualityParams
	realism models.RealismConstraints
}

// NewEngine creates a simulation engine.
func NewEngine(quality models.QualityParams, realism models.RealismConstraints, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		logger:  logger,
		quality: quality,
		realism: realism,
	}
}

// Simulate generates the full, finite, time-ordered session sequence for one
// profile. It is restartable only by re-running with the same seed; it is not
// a resumable stream. All distorting noise is funded by the supplied budget
// ledger.
func (e *Engine) Simulate(
	rng *rand.Rand,
	profile models.CognitiveProfile,
	timeRange models.TimeRange,
	budget *privacy.Controller,
) ([]models.LearningSession, error) {
	if !timeRange.End.After(timeRange.Start) {
		return nil, errors.NewConfigurationError(errors.CodeInvalidTimeRange,
			fmt.Sprintf("time range end %s is not after start %s",
				timeRange.End.Format(time.RFC3339), timeRange.Start.Format(time.RFC3339)))
	}

	tmpl, err := personas.TemplateFor(profile.Persona)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, "profile carries uncatalogued persona")
	}

	arrivals := e.arrivalTimes(rng, profile, tmpl, timeRange)
	if len(arrivals) == 0 {
		return []models.LearningSession{}, nil
	}

	// Per-session noise costs are fixed once the arrival count is known, so
	// the spend pattern is a pure function of (profile, seed).
	epsRemaining, deltaRemaining := budget.Remaining()
	perSessionEps := epsRemaining * sessionNoiseBudgetFraction / float64(2*len(arrivals))
	perSessionDelta := deltaRemaining * sessionNoiseBudgetFraction / float64(2*len(arrivals))

	// Concept introduction order is shuffled once per student.
	pool := make([]string, len(constants.ConceptPool))
	copy(pool, constants.ConceptPool)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	states := make(map[string]*conceptState)
	var introduced int

	engagement := privacy.Clamp(tmpl.EngagementBaseline.Mean+rng.NormFloat64()*tmpl.EngagementBaseline.StdDev, 0, 1)
	baseline := tmpl.EngagementBaseline.Mean

	sessions := make([]models.LearningSession, 0, len(arrivals))
	for _, start := range arrivals {
		session, err := e.simulateSession(rng, profile, start, budget, perSessionEps, perSessionDelta,
			pool, &introduced, states, &engagement, baseline)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	e.logger.WithFields(logrus.Fields{
		"student_id": profile.StudentID,
		"persona":    profile.Persona,
		"sessions":   len(sessions),
	}).Debug("Simulated session sequence")

	return sessions, nil
}

// arrivalTimes draws session start times from a seeded point process. The
// rate derives from the profile's preferred session duration relative to a
// nominal daily study budget, scaled by the persona engagement baseline.
func (e *Engine) arrivalTimes(
	rng *rand.Rand,
	profile models.CognitiveProfile,
	tmpl *personas.AttributeTemplate,
	timeRange models.TimeRange,
) []time.Time {
	preferred := profile.InteractionTiming.PreferredSessionDuration
	if preferred <= 0 {
		preferred = 30 * time.Minute
	}

	dailyStudy := time.Duration(float64(nominalDailyStudy) * (0.5 + tmpl.EngagementBaseline.Mean))
	sessionsPerDay := float64(dailyStudy) / float64(preferred)
	sessionsPerDay = privacy.Clamp(sessionsPerDay, 0.2, 4)

	meanGap := time.Duration(float64(24*time.Hour) / sessionsPerDay)

	var arrivals []time.Time
	t := timeRange.Start
	for {
		gap := time.Duration(-math.Log(1-rng.Float64()) * float64(meanGap))
		if gap < 2*time.Hour {
			gap = 2 * time.Hour
		}
		t = t.Add(gap)
		if !t.Before(timeRange.End) {
			break
		}
		arrival := t
		if e.realism.ApplyEducationalResearchPatterns {
			// Snapping moves the arrival within its day, so it can land
			// before the range start when the range begins late in the day.
			arrival = snapToStudyHours(rng, arrival)
			if !arrival.Before(timeRange.End) {
				break
			}
			if arrival.Before(timeRange.Start) {
				continue
			}
		}
		arrivals = append(arrivals, arrival)
	}

	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].Before(arrivals[j]) })
	return arrivals
}

// snapToStudyHours warps an arrival into realistic study hours: mostly late
// afternoon and evening, occasionally morning.
func snapToStudyHours(rng *rand.Rand, t time.Time) time.Time {
	hour := t.Hour()
	if hour >= 15 && hour <= 22 {
		return t
	}

	var target int
	switch u := rng.Float64(); {
	case u < 0.55:
		target = 16 + rng.Intn(5) // 16:00-20:59
	case u < 0.80:
		target = 20 + rng.Intn(3) // 20:00-22:59
	default:
		target = 8 + rng.Intn(5) // 08:00-12:59
	}
	return time.Date(t.Year(), t.Month(), t.Day(), target, t.Minute(), t.Second(), 0, t.Location())
}

func (e *Engine) simulateSession(
	rng *rand.Rand,
	profile models.CognitiveProfile,
	start time.Time,
	budget *privacy.Controller,
	eps, delta float64,
	pool []string,
	introduced *int,
	states map[string]*conceptState,
	engagement *float64,
	engagementBaseline float64,
) (models.LearningSession, error) {
	concepts := selectConcepts(rng, start, pool, introduced, states)

	// Mean predicted retention over the session's concepts drives accuracy
	// together with the base acquisition rate.
	var retention float64
	for _, c := range concepts {
		retention += states[c].retention(start, profile.MemoryRetention)
	}
	retention /= float64(len(concepts))

	predicted := 0.20 + 0.45*profile.LearningVelocity.BaseRate + 0.35*retention
	predicted -= 0.15 * profile.StrugglePatterns.ConfusionTendency * (1 - profile.StrugglePatterns.CognitiveLoadCapacity)
	predicted -= 0.08 * profile.StrugglePatterns.AnxietySensitivity
	predicted = privacy.Clamp(predicted, 0.02, 0.98)

	// Budgeted accuracy distortion (Laplace, pure epsilon).
	accScale, err := budget.AllocateLaplace(constants.OpSessionAccuracyNoise, eps, 0.05)
	if err != nil {
		return models.LearningSession{}, err
	}
	noisyAccuracy := privacy.Clamp(predicted+clampNoise(privacy.SampleLaplace(rng, accScale), 0.15), 0.02, 0.98)

	// Budgeted timing distortion (Gaussian, carries the delta cost).
	timScale, err := budget.AllocateGaussian(constants.OpSessionTimingNoise, eps, delta, e.timingSensitivity())
	if err != nil {
		return models.LearningSession{}, err
	}

	duration := time.Duration(float64(profile.InteractionTiming.PreferredSessionDuration) *
		(1 + 0.25*rng.NormFloat64()))
	duration += time.Duration(clampNoise(privacy.SampleGaussian(rng, timScale), 0.25) * float64(time.Hour))
	duration = clampDuration(duration, constants.MinSessionDuration, constants.MaxSessionDuration)

	answerTime := float64(profile.InteractionTiming.BaseResponseTime) * profile.InteractionTiming.ComplexityMultiplier
	questions := int(float64(duration) / (answerTime * 4)) // answering is a quarter of session time
	if questions < constants.MinQuestionsPerSession {
		questions = constants.MinQuestionsPerSession
	}
	if questions > constants.MaxQuestionsPerSession {
		questions = constants.MaxQuestionsPerSession
	}

	correct := 0
	for i := 0; i < questions; i++ {
		if rng.Float64() < noisyAccuracy {
			correct++
		}
	}
	accuracy := float64(correct) / float64(questions)

	// Engagement: AR(1) chain when temporal correlations are on, independent
	// draws around the persona baseline otherwise.
	if e.realism.GenerateTemporalCorrelations {
		rho := constants.EngagementAutocorrelation
		*engagement = rho**engagement + (1-rho)*engagementBaseline + rng.NormFloat64()*0.06
	} else {
		*engagement = engagementBaseline + rng.NormFloat64()*0.12
	}
	*engagement = privacy.Clamp(*engagement, 0, 1)
	score := *engagement

	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return models.LearningSession{}, errors.WrapError(err, errors.ErrorTypeInternal,
			errors.CodeInternalError, "failed to derive session id")
	}

	session := models.LearningSession{
		SessionID:         id.String(),
		StudentID:         profile.StudentID,
		StartTime:         start,
		Duration:          duration,
		QuestionsAnswered: questions,
		CorrectAnswers:    correct,
		ConceptsStudied:   concepts,
		EngagementScore:   score,
	}

	// Per-session outlier injection, bounded so dataset-level aggregates stay
	// within a realistic envelope (at most 2x the duration cap, engagement
	// pinned to an extreme rather than out of range).
	if rng.Float64() < e.quality.OutlierRate {
		session.IsOutlier = true
		session.Duration = clampDuration(session.Duration*3, constants.MinSessionDuration, 2*constants.MaxSessionDuration)
		if rng.Float64() < 0.5 {
			session.EngagementScore = 0.02
		} else {
			session.EngagementScore = 0.99
		}
	}

	e.injectMissingData(rng, &session)

	// SM-2 interval updates from this session's realized accuracy.
	for _, c := range concepts {
		states[c].review(start, accuracy)
	}

	return session, nil
}

// selectConcepts picks 1-3 concepts for a session: overdue reviews first, in
// due order, then new concepts from the student's introduction order.
func selectConcepts(rng *rand.Rand, now time.Time, pool []string, introduced *int, states map[string]*conceptState) []string {
	want := 1 + rng.Intn(3)

	var due []*conceptState
	for _, cs := range states {
		if !cs.nextReview.After(now) {
			due = append(due, cs)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].nextReview.Equal(due[j].nextReview) {
			return due[i].concept < due[j].concept
		}
		return due[i].nextReview.Before(due[j].nextReview)
	})

	concepts := make([]string, 0, want)
	for _, cs := range due {
		if len(concepts) == want {
			break
		}
		concepts = append(concepts, cs.concept)
	}

	for len(concepts) < want && *introduced < len(pool) {
		c := pool[*introduced]
		*introduced++
		states[c] = newConceptState(c, now)
		concepts = append(concepts, c)
	}

	if len(concepts) == 0 {
		// Pool exhausted and nothing due: revisit the least recently reviewed.
		var oldest *conceptState
		for _, cs := range states {
			if oldest == nil || cs.lastReview.Before(oldest.lastReview) ||
				(cs.lastReview.Equal(oldest.lastReview) && cs.concept < oldest.concept) {
				oldest = cs
			}
		}
		concepts = append(concepts, oldest.concept)
	}

	sort.Strings(concepts)
	return concepts
}

// injectMissingData blanks fields independently with the configured rate,
// zeroing the value and recording which field went missing.
func (e *Engine) injectMissingData(rng *rand.Rand, s *models.LearningSession) {
	rate := e.quality.MissingDataRate
	if rate <= 0 {
		return
	}
	if rng.Float64() < rate {
		s.Duration = 0
		s.MissingFields = append(s.MissingFields, models.FieldDuration)
	}
	if rng.Float64() < rate {
		s.EngagementScore = 0
		s.MissingFields = append(s.MissingFields, models.FieldEngagement)
	}
	if rng.Float64() < rate {
		s.ConceptsStudied = nil
		s.MissingFields = append(s.MissingFields, models.FieldConcepts)
	}
}

// timingSensitivity is the duration sensitivity, in hours, used for the
// Gaussian timing mechanism. The noise floor knob raises it.
func (e *Engine) timingSensitivity() float64 {
	s := 0.05
	if e.quality.NoiseLevelStd > s {
		s = e.quality.NoiseLevelStd
	}
	return s
}

// clampNoise bounds a noise draw to [-limit, limit]; allocation-derived
// scales explode when per-session epsilon is tiny.
func clampNoise(v, limit float64) float64 {
	return privacy.Clamp(v, -limit, limit)
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
